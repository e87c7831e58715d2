package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/entitlement-service/internal/domain"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/token"
)

type fakeReceipts struct {
	window token.EntitlementWindow
	err    error
}

func (f fakeReceipts) Verify(string) (token.EntitlementWindow, error) {
	return f.window, f.err
}

type fakeMinter struct {
	minted []token.EntitlementWindow
	err    error
}

func (f *fakeMinter) Mint(_ context.Context, window token.EntitlementWindow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.minted = append(f.minted, window)
	return "minted." + window.Identity, nil
}

type fakeEntitlements struct {
	rows      map[string]domain.Entitlement
	upsertErr error
}

func newFakeEntitlements(rows ...domain.Entitlement) *fakeEntitlements {
	f := &fakeEntitlements{rows: map[string]domain.Entitlement{}}
	for _, r := range rows {
		f.rows[r.Identity] = r
	}
	return f
}

func (f *fakeEntitlements) Upsert(_ context.Context, e *domain.Entitlement) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.rows[e.Identity] = *e
	return nil
}

func (f *fakeEntitlements) ListExpired(_ context.Context, partition string, nowMillis int64) ([]domain.Entitlement, error) {
	var out []domain.Entitlement
	for _, e := range f.rows {
		if e.Partition == partition && e.EndsMillis < nowMillis {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSchedules struct {
	rows     []domain.Schedule
	replaces int
}

func (f *fakeSchedules) ListByEntitlement(_ context.Context, partition, entitlement string) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, s := range f.rows {
		if s.Partition == partition && s.Entitlement == entitlement {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchedules) Replace(ctx context.Context, partition, entitlement string, schedules []domain.Schedule) error {
	f.replaces++
	_, _ = f.DeleteByEntitlement(ctx, partition, entitlement)
	f.rows = append(f.rows, schedules...)
	return nil
}

func (f *fakeSchedules) ListDue(_ context.Context, partition string, beforeSlot int64) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for _, s := range f.rows {
		if s.Partition == partition && s.NextFire < beforeSlot {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSchedules) UpdateNextFire(_ context.Context, partition string, id uuid.UUID, nextFire int64) error {
	for i := range f.rows {
		if f.rows[i].Partition == partition && f.rows[i].ID == id {
			f.rows[i].NextFire = nextFire
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeSchedules) DeleteByEntitlement(_ context.Context, partition, entitlement string) (int64, error) {
	kept := f.rows[:0]
	var removed int64
	for _, s := range f.rows {
		if s.Partition == partition && s.Entitlement == entitlement {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	f.rows = kept
	return removed, nil
}

type fakePushes struct {
	rows    map[string]domain.PushEndpoint
	upserts int
	getErr  error
}

func (f *fakePushes) Get(_ context.Context, partition, entitlement string) (*domain.PushEndpoint, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.rows[partition+"/"+entitlement]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (f *fakePushes) Upsert(_ context.Context, e *domain.PushEndpoint) error {
	f.upserts++
	f.rows[e.Partition+"/"+e.Entitlement] = *e
	return nil
}

// recorder captures published events of the given types.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecorder(d events.Dispatcher, types ...events.EventType) *recorder {
	r := &recorder{}
	for _, t := range types {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
	return r
}
