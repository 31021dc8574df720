package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	protected.Get("/categories", cfg.Tickets.ListCategories)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Post("/:id/satisfaction", cfg.Tickets.RateTicket)

	staff := protected.Group("/staff/tickets", auth.RequireStaff())
	staff.Get("/stats", cfg.StaffTickets.Stats)
	staff.Post("/:id/transition", cfg.StaffTickets.Transition)
	staff.Post("/:id/assign", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), cfg.StaffTickets.Assign)
	staff.Patch("/:id", cfg.StaffTickets.Update)

	notifications := protected.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/preferences", cfg.Notifications.GetPreferences)
	notifications.Put("/preferences", cfg.Notifications.UpdatePreferences)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Delete("/read", cfg.Notifications.ClearRead)
}
