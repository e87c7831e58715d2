package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/domain"
	"github.com/spec-kit/entitlement-service/internal/repository"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

// PushService registers device push tokens.
type PushService struct {
	pushes    repository.PushRepository
	partition string
	logger    *zap.Logger
}

// NewPushService builds the service.
func NewPushService(partition string, pushes repository.PushRepository, logger *zap.Logger) *PushService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushService{pushes: pushes, partition: partition, logger: logger}
}

// Register records pushToken for principal. Re-registering the stored token
// is a no-op and reports false.
func (s *PushService) Register(ctx context.Context, principal, pushToken string) (bool, error) {
	pushToken = strings.TrimSpace(pushToken)
	if pushToken == "" {
		return false, apperrors.NewValidationError("push_token is required", nil)
	}

	current, err := s.pushes.Get(ctx, s.partition, principal)
	switch {
	case err == nil && current.PushToken == pushToken:
		return false, nil
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return false, apperrors.NewInternalError(fmt.Errorf("load push endpoint: %w", err))
	}

	endpoint := &domain.PushEndpoint{Partition: s.partition, Entitlement: principal, PushToken: pushToken}
	if err := s.pushes.Upsert(ctx, endpoint); err != nil {
		return false, apperrors.NewInternalError(fmt.Errorf("store push endpoint: %w", err))
	}
	s.logger.Info("push endpoint registered", zap.String("principal", principal))
	return true, nil
}
