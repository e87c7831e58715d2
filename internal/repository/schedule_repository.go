package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/entitlement-service/internal/domain"
)

// ScheduleRepository persists notification schedules.
type ScheduleRepository interface {
	ListByEntitlement(ctx context.Context, partition, entitlement string) ([]domain.Schedule, error)
	Replace(ctx context.Context, partition, entitlement string, schedules []domain.Schedule) error
	ListDue(ctx context.Context, partition string, beforeSlot int64) ([]domain.Schedule, error)
	UpdateNextFire(ctx context.Context, partition string, id uuid.UUID, nextFire int64) error
	DeleteByEntitlement(ctx context.Context, partition, entitlement string) (int64, error)
}

type scheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository instantiates repository.
func NewScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepository{pool: pool}
}

const scheduleColumns = `id, partition, entitlement, next_fire, fire_interval`

func (r *scheduleRepository) ListByEntitlement(ctx context.Context, partition, entitlement string) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE partition=$1 AND entitlement=$2`
	rows, err := r.pool.Query(ctx, query, partition, entitlement)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

// Replace swaps the entitlement's schedule set in one transaction.
func (r *scheduleRepository) Replace(ctx context.Context, partition, entitlement string, schedules []domain.Schedule) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM schedules WHERE partition=$1 AND entitlement=$2`, partition, entitlement); err != nil {
		return fmt.Errorf("delete schedules: %w", err)
	}

	batch := &pgx.Batch{}
	for _, s := range schedules {
		batch.Queue(`
            INSERT INTO schedules (`+scheduleColumns+`)
            VALUES ($1, $2, $3, $4, $5)`,
			s.ID, partition, entitlement, s.NextFire, s.FireInterval)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert schedules: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *scheduleRepository) ListDue(ctx context.Context, partition string, beforeSlot int64) ([]domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE partition=$1 AND next_fire < $2 ORDER BY next_fire`
	rows, err := r.pool.Query(ctx, query, partition, beforeSlot)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

func (r *scheduleRepository) UpdateNextFire(ctx context.Context, partition string, id uuid.UUID, nextFire int64) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE schedules SET next_fire=$1 WHERE partition=$2 AND id=$3`, nextFire, partition, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *scheduleRepository) DeleteByEntitlement(ctx context.Context, partition, entitlement string) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM schedules WHERE partition=$1 AND entitlement=$2`, partition, entitlement)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func collectSchedules(rows pgx.Rows) ([]domain.Schedule, error) {
	defer rows.Close()

	var schedules []domain.Schedule
	for rows.Next() {
		var s domain.Schedule
		if err := rows.Scan(&s.ID, &s.Partition, &s.Entitlement, &s.NextFire, &s.FireInterval); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}
