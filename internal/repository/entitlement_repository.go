package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/entitlement-service/internal/domain"
)

// EntitlementRepository persists entitlement windows.
type EntitlementRepository interface {
	Upsert(ctx context.Context, entitlement *domain.Entitlement) error
	ListExpired(ctx context.Context, partition string, nowMillis int64) ([]domain.Entitlement, error)
}

type entitlementRepository struct {
	pool *pgxpool.Pool
}

// NewEntitlementRepository returns a Postgres-backed implementation.
func NewEntitlementRepository(pool *pgxpool.Pool) EntitlementRepository {
	return &entitlementRepository{pool: pool}
}

// Upsert overwrites any previous window for the same identity.
func (r *entitlementRepository) Upsert(ctx context.Context, entitlement *domain.Entitlement) error {
	const query = `
        INSERT INTO entitlements (partition, identity, ends_millis)
        VALUES ($1, $2, $3)
        ON CONFLICT (partition, identity)
        DO UPDATE SET ends_millis = EXCLUDED.ends_millis, updated_at = NOW()
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		entitlement.Partition,
		entitlement.Identity,
		entitlement.EndsMillis,
	).Scan(&entitlement.UpdatedAt)
}

func (r *entitlementRepository) ListExpired(ctx context.Context, partition string, nowMillis int64) ([]domain.Entitlement, error) {
	const query = `
        SELECT partition, identity, ends_millis, updated_at
        FROM entitlements
        WHERE partition=$1 AND ends_millis < $2
        ORDER BY ends_millis`

	rows, err := r.pool.Query(ctx, query, partition, nowMillis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Entitlement
	for rows.Next() {
		var e domain.Entitlement
		if err := rows.Scan(&e.Partition, &e.Identity, &e.EndsMillis, &e.UpdatedAt); err != nil {
			return nil, err
		}
		expired = append(expired, e)
	}
	return expired, rows.Err()
}
