package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/entitlement-service/internal/api/dto"
	"github.com/spec-kit/entitlement-service/internal/service"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

// EntitlementIssuer exchanges receipts for tokens.
type EntitlementIssuer interface {
	Issue(ctx context.Context, receipt string) (*service.IssuedToken, error)
}

// EntitlementsHandler exposes receipt exchange.
type EntitlementsHandler struct {
	issuer EntitlementIssuer
}

// NewEntitlementsHandler constructs handler.
func NewEntitlementsHandler(issuer EntitlementIssuer) *EntitlementsHandler {
	return &EntitlementsHandler{issuer: issuer}
}

// Issue handles POST /entitlements.
func (h *EntitlementsHandler) Issue(c *fiber.Ctx) error {
	var req dto.IssueEntitlementRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	issued, err := h.issuer.Issue(c.UserContext(), req.TransactionJWS)
	if err != nil {
		return err
	}
	return c.JSON(dto.IssueEntitlementResponse{Token: issued.Token})
}
