package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/domain"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/repository"
	"github.com/spec-kit/entitlement-service/internal/token"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

// ReceiptVerifier checks a purchase receipt and returns its window.
type ReceiptVerifier interface {
	Verify(receipt string) (token.EntitlementWindow, error)
}

// TokenMinter issues bearer tokens for a window.
type TokenMinter interface {
	Mint(ctx context.Context, window token.EntitlementWindow) (string, error)
}

// IssuedToken is the result of exchanging a receipt.
type IssuedToken struct {
	Token     string
	Identity  string
	ExpiresAt time.Time
}

// EntitlementService exchanges purchase receipts for bearer tokens.
type EntitlementService struct {
	receipts     ReceiptVerifier
	minter       TokenMinter
	entitlements repository.EntitlementRepository
	dispatcher   events.Dispatcher
	partition    string
	logger       *zap.Logger
	now          func() time.Time
}

// EntitlementDependencies encapsulates collaborators for EntitlementService.
type EntitlementDependencies struct {
	Receipts     ReceiptVerifier
	Minter       TokenMinter
	Entitlements repository.EntitlementRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewEntitlementService builds the service for one partition.
func NewEntitlementService(partition string, deps EntitlementDependencies) *EntitlementService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &EntitlementService{
		receipts:     deps.Receipts,
		minter:       deps.Minter,
		entitlements: deps.Entitlements,
		dispatcher:   deps.Dispatcher,
		partition:    partition,
		logger:       logger,
		now:          now,
	}
}

// Issue verifies the receipt, mints a token for its window and records the
// entitlement. Any receipt problem, including an already elapsed window,
// is reported as unauthorized.
func (s *EntitlementService) Issue(ctx context.Context, receipt string) (*IssuedToken, error) {
	if receipt == "" {
		return nil, apperrors.NewValidationError("transaction_jws is required", nil)
	}

	window, err := s.receipts.Verify(receipt)
	if err != nil {
		s.logger.Info("receipt rejected", zap.Error(err))
		return nil, apperrors.NewUnauthorized(err)
	}
	if !window.End.After(s.now()) {
		s.logger.Info("receipt expired",
			zap.String("identity", window.Identity),
			zap.Time("ends", window.End))
		return nil, apperrors.NewUnauthorized(fmt.Errorf("entitlement ended at %s", window.End))
	}

	minted, err := s.minter.Mint(ctx, window)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("mint token: %w", err))
	}

	entitlement := &domain.Entitlement{
		Partition:  s.partition,
		Identity:   window.Identity,
		EndsMillis: window.End.UnixMilli(),
	}
	if err := s.entitlements.Upsert(ctx, entitlement); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("store entitlement: %w", err))
	}

	if s.dispatcher != nil {
		event := events.NewEvent(events.EventEntitlementGranted, s.partition, window.Identity,
			events.EntitlementGrantedPayload{EndsMillis: entitlement.EndsMillis})
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("entitlement event handlers failed", zap.Error(err))
		}
	}

	return &IssuedToken{Token: minted, Identity: window.Identity, ExpiresAt: window.End}, nil
}
