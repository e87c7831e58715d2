package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/entitlement-service/internal/api/http/handlers"
	"github.com/spec-kit/entitlement-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Entitlements   *handlers.EntitlementsHandler
	Authorize      *handlers.AuthorizeHandler
	Subscriber     *handlers.SubscriberHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	app.Post("/entitlements", cfg.Entitlements.Issue)
	app.Post("/authorize", cfg.Authorize.Authorize)

	authorized := cfg.AuthMiddleware.Handle
	app.Put("/schedules", authorized, cfg.Subscriber.ReplaceSchedules)
	app.Post("/push", authorized, cfg.Subscriber.RegisterPush)
}
