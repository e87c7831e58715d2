package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/entitlement-service/internal/api/dto"
	"github.com/spec-kit/entitlement-service/internal/auth"
	"github.com/spec-kit/entitlement-service/internal/domain"
	apperrors "github.com/spec-kit/entitlement-service/pkg/util"
)

// ScheduleReplacer replaces a principal's schedule set.
type ScheduleReplacer interface {
	Replace(ctx context.Context, principal string, entries []domain.ScheduleEntry) (bool, error)
}

// PushRegistrar stores a principal's push token.
type PushRegistrar interface {
	Register(ctx context.Context, principal, pushToken string) (bool, error)
}

// SubscriberHandler serves the endpoints a subscribed device calls.
type SubscriberHandler struct {
	schedules ScheduleReplacer
	pushes    PushRegistrar
}

// NewSubscriberHandler constructs handler.
func NewSubscriberHandler(schedules ScheduleReplacer, pushes PushRegistrar) *SubscriberHandler {
	return &SubscriberHandler{schedules: schedules, pushes: pushes}
}

// ReplaceSchedules handles PUT /schedules.
func (h *SubscriberHandler) ReplaceSchedules(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(nil)
	}
	var req dto.UpdateSchedulesRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.schedules.Replace(c.UserContext(), principal.ID, req.ToDomain()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RegisterPush handles POST /push.
func (h *SubscriberHandler) RegisterPush(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized(nil)
	}
	var req dto.RegisterPushRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if _, err := h.pushes.Register(c.UserContext(), principal.ID, req.PushToken); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
