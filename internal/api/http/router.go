package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/http/handlers"
	"github.com/spec-kit/sla-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Sla            *handlers.SlaHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.IssueToken)

	issues := app.Group("/issues", cfg.AuthMiddleware.Handle, auth.RequireCapability(auth.CapabilitySlaRead))
	issues.Get("/:id/sla", cfg.Sla.GetIssueSla)

	admin := app.Group("/admin/sla", cfg.AuthMiddleware.Handle, auth.RequireCapability(auth.CapabilitySlaManage))
	admin.Post("/sweep", cfg.Admin.TriggerSweep)
	admin.Get("/dead-letters", cfg.Admin.ListDeadLetters)
}
