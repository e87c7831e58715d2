package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/observability"
	"github.com/spec-kit/entitlement-service/internal/token"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	ID string
	// ExpiresAt is the token's exp claim in Unix seconds.
	ExpiresAt string
}

// AuthMiddleware authorizes requests in process with the same authorizer the
// gateway calls, evaluating the returned policy against the request's method
// descriptor.
type AuthMiddleware struct {
	authorizer *token.Authorizer
	gateway    config.GatewayConfig
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(authorizer *token.Authorizer, gateway config.GatewayConfig, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{authorizer: authorizer, gateway: gateway, metrics: metrics, logger: logger}
}

// MethodARN describes the request the way the gateway would.
func (m *AuthMiddleware) MethodARN(c *fiber.Ctx) string {
	return token.FormatMethodARN(
		m.gateway.Region,
		m.gateway.AccountID,
		m.gateway.APIID,
		m.gateway.Stage,
		token.Method(strings.ToUpper(c.Method())),
		c.Path(),
	)
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	methodARN := m.MethodARN(c)

	resp, err := m.authorizer.Authorize(c.UserContext(), token.AuthorizerRequest{
		Type:               "TOKEN",
		AuthorizationToken: c.Get(fiber.HeaderAuthorization),
		MethodARN:          methodARN,
	})
	if err != nil {
		if token.IsRejection(err) {
			m.metrics.RecordDecision(rejectionReason(err))
			m.logger.Info("request rejected", zap.String("method_arn", methodARN), zap.Error(err))
			return apperrors.NewUnauthorized(err)
		}
		return apperrors.NewInternalError(err)
	}

	effect := resp.PolicyDocument.EffectFor(methodARN)
	m.metrics.RecordDecision(string(effect))
	if effect != token.EffectAllow {
		return apperrors.NewForbidden("access denied")
	}

	c.Locals(principalKey, &Principal{ID: resp.PrincipalID, ExpiresAt: resp.Context.Exp})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, token.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, token.ErrUnknownKey), errors.Is(err, token.ErrKeyNotFound):
		return "unknown_key"
	case errors.Is(err, token.ErrMalformedToken):
		return "malformed_token"
	case errors.Is(err, token.ErrInvalidClaims):
		return "invalid_claims"
	default:
		return "invalid_signature"
	}
}
