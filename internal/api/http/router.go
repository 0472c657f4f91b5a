package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-core/internal/api/http/handlers"
	"github.com/spec-kit/support-core/internal/auth"
	"github.com/spec-kit/support-core/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Stream         *handlers.StreamHandler
	Operators      *handlers.OperatorsHandler
	Settings       *handlers.SettingsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/operators/login", cfg.Operators.Login)

	app.Get("/settings/public", cfg.Settings.PublicSettings)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())

	tickets := protected.Group("/tickets")
	// Static segments must register before /:id.
	tickets.Get("/stream", cfg.Stream.Stream)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.OperatorRoleAdmin), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
	tickets.Post("/:id/escalate", cfg.Tickets.EscalateTicket)
	tickets.Get("/:id/audit", cfg.Tickets.AuditTrail)

	protected.Post("/operators", auth.RequireRole(domain.OperatorRoleAdmin), cfg.Operators.CreateOperator)

	settings := protected.Group("/settings")
	settings.Get("/", cfg.Settings.ListSettings)
	settings.Get("/:key", cfg.Settings.GetSetting)
	settings.Put("/:key", auth.RequireRole(domain.OperatorRoleAdmin), cfg.Settings.UpdateSetting)
}
