package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Threads        *handlers.ThreadsHandler
	Communities    *handlers.CommunitiesHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/token", cfg.Auth.Token)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	admin := auth.RequireRole(domain.APIRoleAdmin)
	api.Post("/auth/tokens", admin, cfg.Auth.Issue)
	api.Post("/maintenance/cleanup", admin, cfg.Admin.Cleanup)
	api.Get("/settings", admin, cfg.Admin.ListSettings)
	api.Get("/settings/:key", admin, cfg.Admin.GetSetting)
	api.Put("/settings/:key", admin, cfg.Admin.PutSetting)
	api.Delete("/settings/:key", admin, cfg.Admin.DeleteSetting)
	api.Get("/notifications/status", admin, cfg.Admin.NotificationStatus)
	api.Post("/notifications/test", admin, cfg.Admin.NotificationTest)
	api.Delete("/notifications/queue", admin, cfg.Admin.NotificationClear)
	api.Get("/metrics", admin, cfg.Admin.Metrics)

	bot := auth.RequireRole(domain.APIRoleIntegration)
	api.Get("/categories", bot, cfg.Tickets.Categories)
	api.Post("/tickets/open", bot, cfg.Tickets.OpenTicket)
	api.Post("/tickets", bot, cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", bot, cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id/status", bot, cfg.Tickets.UpdateStatus)

	api.Get("/users/:userID/tickets", bot, cfg.Tickets.ListUserTickets)
	api.Get("/users/:userID/eligibility", bot, cfg.Tickets.CheckEligibility)

	api.Get("/threads/:threadID/ticket", bot, cfg.Threads.GetTicket)
	api.Post("/threads/:threadID/close", bot, cfg.Threads.Close)
	api.Post("/threads/:threadID/claim", bot, cfg.Threads.Claim)
	api.Get("/threads/:threadID/transcript", bot, cfg.Threads.Transcript)

	api.Get("/communities/:communityID/tickets", bot, cfg.Communities.ListTickets)
	api.Get("/communities/:communityID/statistics", bot, cfg.Communities.Statistics)
	api.Get("/communities/:communityID/live", bot, cfg.Communities.LiveStatistics)
	api.Get("/communities/:communityID/analytics", bot, cfg.Communities.Analytics)
	api.Post("/communities/:communityID/close-all", bot, cfg.Communities.CloseAll)
}
