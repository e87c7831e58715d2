package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/domain"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/repository"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

const (
	maxScheduleEntries = 64
	// maxFireInterval bounds fire_interval so that slot arithmetic stays
	// far from int64 overflow.
	maxFireInterval = int64(1) << 40
	defaultSlot     = 5 * time.Minute
)

// ScheduleService manages notification schedules and the periodic work on
// them.
type ScheduleService struct {
	schedules    repository.ScheduleRepository
	entitlements repository.EntitlementRepository
	dispatcher   events.Dispatcher
	partition    string
	slot         time.Duration
	logger       *zap.Logger
}

// ScheduleDependencies encapsulates collaborators for ScheduleService.
type ScheduleDependencies struct {
	Schedules    repository.ScheduleRepository
	Entitlements repository.EntitlementRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewScheduleService builds the service. slot is the length of one
// notification slot.
func NewScheduleService(partition string, slot time.Duration, deps ScheduleDependencies) *ScheduleService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if slot < time.Millisecond {
		slot = defaultSlot
	}
	return &ScheduleService{
		schedules:    deps.Schedules,
		entitlements: deps.Entitlements,
		dispatcher:   deps.Dispatcher,
		partition:    partition,
		slot:         slot,
		logger:       logger,
	}
}

// Replace stores entries as the principal's schedule set. It reports false
// without writing when the stored set already matches in any order.
func (s *ScheduleService) Replace(ctx context.Context, principal string, entries []domain.ScheduleEntry) (bool, error) {
	if err := validateEntries(entries); err != nil {
		return false, err
	}

	stored, err := s.schedules.ListByEntitlement(ctx, s.partition, principal)
	if err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("load schedules: %w", err))
	}
	existing := make([]domain.ScheduleEntry, 0, len(stored))
	for _, sched := range stored {
		existing = append(existing, sched.Entry())
	}
	if domain.SameScheduleSet(existing, entries) {
		s.logger.Debug("schedules unchanged", zap.String("principal", principal))
		return false, nil
	}

	replacement := make([]domain.Schedule, 0, len(entries))
	for _, entry := range entries {
		replacement = append(replacement, domain.Schedule{
			ID:           uuid.New(),
			Partition:    s.partition,
			Entitlement:  principal,
			NextFire:     entry.NextFire(),
			FireInterval: entry.FireInterval,
		})
	}
	if err := s.schedules.Replace(ctx, s.partition, principal, replacement); err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("replace schedules: %w", err))
	}

	s.publish(ctx, events.NewEvent(events.EventSchedulesReplaced, s.partition, principal,
		events.SchedulesReplacedPayload{Count: len(replacement)}))
	return true, nil
}

// CurrentSlot returns the slot number containing now.
func (s *ScheduleService) CurrentSlot(now time.Time) int64 {
	return now.UnixMilli() / s.slot.Milliseconds()
}

// FireDue publishes a notification for every schedule due by the current
// slot and advances each to current slot plus its interval. Delivery is best
// effort: a schedule advances even if its handlers fail.
func (s *ScheduleService) FireDue(ctx context.Context, now time.Time) (int, error) {
	slot := s.CurrentSlot(now)
	due, err := s.schedules.ListDue(ctx, s.partition, slot+1)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}

	fired := 0
	for _, sched := range due {
		s.publish(ctx, events.NewEvent(events.EventNotificationDue, s.partition, sched.Entitlement,
			events.NotificationDuePayload{ScheduleID: sched.ID, Slot: slot}))

		if err := s.schedules.UpdateNextFire(ctx, s.partition, sched.ID, advanceSlot(slot, sched.FireInterval)); err != nil {
			return fired, fmt.Errorf("advance schedule %s: %w", sched.ID, err)
		}
		fired++
	}
	return fired, nil
}

// PurgeExpired removes the schedules of every entitlement that ended before
// now. It returns how many schedules were deleted.
func (s *ScheduleService) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	expired, err := s.entitlements.ListExpired(ctx, s.partition, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("list expired entitlements: %w", err)
	}

	var removed int64
	for _, ent := range expired {
		n, err := s.schedules.DeleteByEntitlement(ctx, s.partition, ent.Identity)
		if err != nil {
			return removed, fmt.Errorf("delete schedules for %s: %w", ent.Identity, err)
		}
		removed += n
		if n > 0 {
			s.publish(ctx, events.NewEvent(events.EventEntitlementExpired, s.partition, ent.Identity,
				events.EntitlementExpiredPayload{EndsMillis: ent.EndsMillis, SchedulesRemoved: n}))
		}
	}
	return removed, nil
}

func (s *ScheduleService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("entitlement", event.Entitlement),
			zap.Error(err))
	}
}

// advanceSlot returns slot+interval, saturating at math.MaxInt64 for rows
// written before fire_interval was bounded.
func advanceSlot(slot, interval int64) int64 {
	if interval > math.MaxInt64-slot {
		return math.MaxInt64
	}
	return slot + interval
}

func validateEntries(entries []domain.ScheduleEntry) error {
	if len(entries) > maxScheduleEntries {
		return apperrors.NewValidationError("too many schedule entries", map[string]any{"max": maxScheduleEntries})
	}
	for i, entry := range entries {
		var reason string
		switch {
		case entry.LastFire < 0 || entry.FireInterval < 1:
			reason = "last_fire must be >= 0 and fire_interval >= 1"
		case entry.FireInterval > maxFireInterval:
			reason = fmt.Sprintf("fire_interval must be <= %d", maxFireInterval)
		case entry.LastFire > math.MaxInt64-entry.FireInterval:
			reason = "last_fire + fire_interval overflows"
		}
		if reason != "" {
			return apperrors.NewValidationError("invalid schedule entry", map[string]any{
				"index":  i,
				"reason": reason,
			})
		}
	}
	return nil
}
