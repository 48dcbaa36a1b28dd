package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// CommunitiesHandler serves per-community views and bulk actions.
type CommunitiesHandler struct {
	tickets   *service.TicketService
	analytics *service.AnalyticsService
}

// NewCommunitiesHandler constructs handler.
func NewCommunitiesHandler(tickets *service.TicketService, analytics *service.AnalyticsService) *CommunitiesHandler {
	return &CommunitiesHandler{tickets: tickets, analytics: analytics}
}

// ListTickets GET /communities/:communityID/tickets?status=open|closed.
func (h *CommunitiesHandler) ListTickets(c *fiber.Ctx) error {
	var status *domain.TicketStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.TicketStatus(raw)
		if !s.Valid() {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": raw})
		}
		status = &s
	}
	tickets, err := h.tickets.GetCommunityTickets(c.UserContext(), c.Params("communityID"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// Statistics GET /communities/:communityID/statistics.
func (h *CommunitiesHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.tickets.Statistics(c.UserContext(), c.Params("communityID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatisticsResponse(stats)})
}

// LiveStatistics GET /communities/:communityID/live.
func (h *CommunitiesHandler) LiveStatistics(c *fiber.Ctx) error {
	stats, err := h.analytics.LiveStatistics(c.UserContext(), c.Params("communityID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Analytics GET /communities/:communityID/analytics.
func (h *CommunitiesHandler) Analytics(c *fiber.Ctx) error {
	snapshot, err := h.analytics.Generate(c.UserContext(), c.Params("communityID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshot})
}

// CloseAll POST /communities/:communityID/close-all.
func (h *CommunitiesHandler) CloseAll(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}
	result, err := h.tickets.CloseAllTickets(c.UserContext(), c.Params("communityID"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CloseAllResponse{Closed: result.Closed, Errors: result.Errors, Total: result.Total}})
}
