package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/birthday-service/internal/api/http/handlers"
	"github.com/spec-kit/birthday-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	StaffTickets   *handlers.StaffTicketsHandler
	Birthdays      *handlers.BirthdaysHandler
	Guilds         *handlers.GuildsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Accounts.Register)
	authGroup.Post("/login", cfg.Accounts.Login)

	guilds := app.Group("/guilds/:guildID", cfg.AuthMiddleware.Handle)

	guilds.Get("/settings", cfg.Guilds.Get)
	guilds.Put("/settings", cfg.Guilds.Upsert)

	tickets := guilds.Group("/tickets")
	tickets.Post("", cfg.Tickets.Submit)
	tickets.Get("/mine", cfg.Tickets.ListMine)
	tickets.Get("/:ref", cfg.Tickets.Get)
	tickets.Post("/:ref/cancel", cfg.Tickets.Cancel)

	staff := guilds.Group("/staff/tickets")
	staff.Get("", cfg.StaffTickets.ListOpen)
	staff.Get("/:ref", cfg.StaffTickets.Get)
	staff.Post("/:ref/approve", cfg.StaffTickets.Approve)
	staff.Post("/:ref/reject", cfg.StaffTickets.Reject)
	staff.Post("/:ref/reopen", cfg.StaffTickets.Reopen)
	staff.Post("/:ref/notes", cfg.StaffTickets.AddNote)
	staff.Post("/:ref/priority", cfg.StaffTickets.SetPriority)

	birthdays := guilds.Group("/birthdays")
	birthdays.Get("/upcoming", cfg.Birthdays.Upcoming)
	birthdays.Get("/:userID", cfg.Birthdays.Get)
	birthdays.Put("/:userID", cfg.Birthdays.Set)
	birthdays.Delete("/:userID", cfg.Birthdays.Remove)
}
