package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// ThreadsHandler acts on tickets through their threads.
type ThreadsHandler struct {
	tickets     *service.TicketService
	transcripts *service.TranscriptService
}

// NewThreadsHandler constructs handler.
func NewThreadsHandler(tickets *service.TicketService, transcripts *service.TranscriptService) *ThreadsHandler {
	return &ThreadsHandler{tickets: tickets, transcripts: transcripts}
}

// GetTicket GET /threads/:threadID/ticket.
func (h *ThreadsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicketByThread(c.UserContext(), c.Params("threadID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Close POST /threads/:threadID/close.
func (h *ThreadsHandler) Close(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.CloseTicket(c.UserContext(), c.Params("threadID"), req.ActorID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Claim POST /threads/:threadID/claim.
func (h *ThreadsHandler) Claim(c *fiber.Ctx) error {
	req, err := parseAction(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.ClaimTicket(c.UserContext(), c.Params("threadID"), req.ActorID, req.RoleIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Transcript GET /threads/:threadID/transcript?format=json|text.
func (h *ThreadsHandler) Transcript(c *fiber.Ctx) error {
	transcript, err := h.transcripts.Collect(c.UserContext(), c.Params("threadID"))
	if err != nil {
		return err
	}
	if c.Query("format") == "text" {
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", h.transcripts.Filename(transcript)))
		c.Type("txt", "utf-8")
		return c.SendString(h.transcripts.Render(transcript))
	}
	return c.JSON(fiber.Map{"data": transcript})
}

func parseAction(c *fiber.Ctx) (dto.ThreadActionRequest, error) {
	var req dto.ThreadActionRequest
	if err := c.BodyParser(&req); err != nil {
		return req, apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ActorID == "" {
		return req, apperrors.NewValidationError("actor_id required", nil)
	}
	return req, nil
}
