package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/entitlement-service/internal/domain"
)

// PushRepository stores one push endpoint per entitlement.
type PushRepository interface {
	Get(ctx context.Context, partition, entitlement string) (*domain.PushEndpoint, error)
	Upsert(ctx context.Context, endpoint *domain.PushEndpoint) error
}

type pushRepository struct {
	pool *pgxpool.Pool
}

// NewPushRepository returns a Postgres-backed implementation.
func NewPushRepository(pool *pgxpool.Pool) PushRepository {
	return &pushRepository{pool: pool}
}

// Get returns pgx.ErrNoRows when nothing is registered.
func (r *pushRepository) Get(ctx context.Context, partition, entitlement string) (*domain.PushEndpoint, error) {
	const query = `
        SELECT partition, entitlement, push_token, updated_at
        FROM push_endpoints WHERE partition=$1 AND entitlement=$2`

	var endpoint domain.PushEndpoint
	if err := r.pool.QueryRow(ctx, query, partition, entitlement).Scan(
		&endpoint.Partition,
		&endpoint.Entitlement,
		&endpoint.PushToken,
		&endpoint.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &endpoint, nil
}

func (r *pushRepository) Upsert(ctx context.Context, endpoint *domain.PushEndpoint) error {
	const query = `
        INSERT INTO push_endpoints (partition, entitlement, push_token)
        VALUES ($1, $2, $3)
        ON CONFLICT (partition, entitlement)
        DO UPDATE SET push_token = EXCLUDED.push_token, updated_at = NOW()
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		endpoint.Partition,
		endpoint.Entitlement,
		endpoint.PushToken,
	).Scan(&endpoint.UpdatedAt)
}
