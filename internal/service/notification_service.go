package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/entitlement-service/internal/config"
	"github.com/spec-kit/entitlement-service/internal/events"
	"github.com/spec-kit/entitlement-service/internal/repository"
)

const webhookTimeout = 5 * time.Second

// webhookPayload is the body posted to the push gateway.
type webhookPayload struct {
	PushToken   string `json:"push_token"`
	Message     string `json:"message"`
	Entitlement string `json:"entitlement"`
	ScheduleID  string `json:"schedule_id"`
	Slot        int64  `json:"slot"`
}

// NotificationService delivers due notifications to registered devices and
// logs the remaining lifecycle events.
type NotificationService struct {
	dispatcher events.Dispatcher
	pushes     repository.PushRepository
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, pushes repository.PushRepository, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		pushes:     pushes,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventNotificationDue, n.handleNotificationDue)
	n.dispatcher.Subscribe(events.EventEntitlementGranted, n.logEvent)
	n.dispatcher.Subscribe(events.EventSchedulesReplaced, n.logEvent)
	n.dispatcher.Subscribe(events.EventEntitlementExpired, n.logEvent)
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("entitlement", event.Entitlement),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleNotificationDue(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationDuePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}

	endpoint, err := n.pushes.Get(ctx, event.Partition, event.Entitlement)
	if errors.Is(err, pgx.ErrNoRows) {
		n.logger.Debug("no push endpoint registered", zap.String("entitlement", event.Entitlement))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load push endpoint: %w", err)
	}

	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		n.logger.Debug("notification due; no webhook configured",
			zap.String("entitlement", event.Entitlement),
			zap.String("schedule_id", payload.ScheduleID.String()))
		return nil
	}

	return n.sendWebhook(ctx, webhookPayload{
		PushToken:   endpoint.PushToken,
		Message:     n.cfg.Message,
		Entitlement: event.Entitlement,
		ScheduleID:  payload.ScheduleID.String(),
		Slot:        payload.Slot,
	})
}

// sendWebhook posts body within webhookTimeout, shortened to ctx's deadline.
// The fiber agent cannot be cancelled mid-flight, so a done ctx is checked
// before posting.
func (n *NotificationService) sendWebhook(ctx context.Context, body webhookPayload) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	timeout := webhookTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("post webhook: %w", context.DeadlineExceeded)
	}

	agent := fiber.Post(n.cfg.WebhookURL).
		JSON(body).
		Timeout(timeout)

	status, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook: %w", errors.Join(errs...))
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("post webhook: unexpected status %d", status)
	}

	n.logger.Debug("notification delivered",
		zap.String("entitlement", body.Entitlement),
		zap.String("schedule_id", body.ScheduleID))
	return nil
}
