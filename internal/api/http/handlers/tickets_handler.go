package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// TicketsHandler manages ticket records.
type TicketsHandler struct {
	service          *service.TicketService
	defaultCommunity string
}

// NewTicketsHandler constructs handler. defaultCommunity fills in a
// missing community id.
func NewTicketsHandler(ticketService *service.TicketService, defaultCommunity string) *TicketsHandler {
	return &TicketsHandler{service: ticketService, defaultCommunity: defaultCommunity}
}

// Categories GET /categories.
func (h *TicketsHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewCategoryList(h.service.Categories())})
}

// OpenTicket POST /tickets/open.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	var req dto.OpenTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UserID == "" || req.Username == "" || req.ParentChannelID == "" {
		return apperrors.NewValidationError("user_id, username, parent_channel_id required", nil)
	}
	ticket, err := h.service.OpenTicket(c.UserContext(), service.OpenTicketInput{
		UserID:          req.UserID,
		Username:        req.Username,
		CommunityID:     h.community(req.CommunityID),
		ParentChannelID: req.ParentChannelID,
		Category:        req.Category,
		Answers:         req.Answers,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), service.CreateTicketInput{
		UserID:      req.UserID,
		Username:    req.Username,
		Category:    req.Category,
		FormData:    req.FormData,
		ThreadID:    req.ThreadID,
		CommunityID: h.community(req.CommunityID),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.UpdateTicketStatus(c.UserContext(), c.Params("id"), req.Status, req.ClosedBy)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListUserTickets GET /users/:userID/tickets?community_id=&open=true.
func (h *TicketsHandler) ListUserTickets(c *fiber.Ctx) error {
	userID := c.Params("userID")
	communityID := h.community(c.Query("community_id"))
	openOnly, _ := strconv.ParseBool(c.Query("open"))

	fetch := h.service.GetUserTickets
	if openOnly {
		fetch = h.service.GetUserOpenTickets
	}
	tickets, err := fetch(c.UserContext(), userID, communityID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// CheckEligibility GET /users/:userID/eligibility?username=&community_id=.
func (h *TicketsHandler) CheckEligibility(c *fiber.Ctx) error {
	err := h.service.CheckEligibility(c.UserContext(), c.Params("userID"), c.Query("username"), h.community(c.Query("community_id")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"eligible": true}})
}

func (h *TicketsHandler) community(id string) string {
	if id == "" {
		return h.defaultCommunity
	}
	return id
}
