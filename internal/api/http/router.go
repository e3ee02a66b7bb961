package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskflow/helpdesk-service/internal/api/http/handlers"
	"github.com/deskflow/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Transitions    *handlers.TransitionsHandler
	AuthMiddleware fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware, auth.RequireActor())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/transitions", cfg.Tickets.History)
	tickets.Post("/:id/transition", cfg.Transitions.Transition)
	tickets.Post("/:id/assign", cfg.Transitions.Assign)
}
