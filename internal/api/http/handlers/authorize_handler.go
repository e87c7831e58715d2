package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/observability"
	"github.com/spec-kit/entitlement-service/internal/token"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

// AuthorizeHandler serves the gateway's custom authorizer calls.
type AuthorizeHandler struct {
	authorizer *token.Authorizer
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuthorizeHandler constructs handler.
func NewAuthorizeHandler(authorizer *token.Authorizer, metrics *observability.Metrics, logger *zap.Logger) *AuthorizeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizeHandler{authorizer: authorizer, metrics: metrics, logger: logger}
}

// Authorize handles POST /authorize. Every credential failure gets the same
// 401 so callers cannot tell which check failed.
func (h *AuthorizeHandler) Authorize(c *fiber.Ctx) error {
	var req token.AuthorizerRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	resp, err := h.authorizer.Authorize(c.UserContext(), req)
	switch {
	case err == nil:
	case token.IsRejection(err):
		h.metrics.RecordDecision("reject")
		h.logger.Info("authorization rejected", zap.String("method_arn", req.MethodARN), zap.Error(err))
		return apperrors.NewUnauthorized(err)
	case errors.Is(err, token.ErrMalformedMethodARN):
		return apperrors.NewValidationError("invalid methodArn", nil)
	default:
		return apperrors.NewInternalError(err)
	}

	h.metrics.RecordDecision(string(token.EffectAllow))
	return c.JSON(resp)
}
