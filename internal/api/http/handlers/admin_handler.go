package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-bot/internal/api/dto"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/service"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// AdminHandler exposes maintenance, settings, notification and metrics
// endpoints.
type AdminHandler struct {
	tickets       *service.TicketService
	settings      *service.SettingsService
	notifications *service.NotificationService
	metrics       *observability.Metrics
}

// NewAdminHandler constructs handler.
func NewAdminHandler(tickets *service.TicketService, settings *service.SettingsService, notifications *service.NotificationService, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{tickets: tickets, settings: settings, notifications: notifications, metrics: metrics}
}

// Cleanup POST /maintenance/cleanup.
func (h *AdminHandler) Cleanup(c *fiber.Ctx) error {
	var req dto.CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.Days < 0 {
		return apperrors.NewValidationError("days must not be negative", nil)
	}
	result, err := h.tickets.Cleanup(c.UserContext(), req.Days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CleanupResponse{
		ClearedCooldowns: result.ClearedCooldowns,
		DeletedTickets:   result.DeletedTickets,
	}})
}

// ListSettings GET /settings.
func (h *AdminHandler) ListSettings(c *fiber.Ctx) error {
	all, err := h.settings.All(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": all})
}

// GetSetting GET /settings/:key.
func (h *AdminHandler) GetSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	var value any
	found, err := h.settings.Decode(c.UserContext(), key, &value)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFound("setting", map[string]any{"key": key})
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"key": key, "value": value}})
}

// PutSetting PUT /settings/:key.
func (h *AdminHandler) PutSetting(c *fiber.Ctx) error {
	var req dto.SettingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	key := c.Params("key")
	if err := h.settings.Set(c.UserContext(), key, req.Value); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"key": key, "value": req.Value}})
}

// DeleteSetting DELETE /settings/:key.
func (h *AdminHandler) DeleteSetting(c *fiber.Ctx) error {
	if err := h.settings.Delete(c.UserContext(), c.Params("key")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// NotificationStatus GET /notifications/status.
func (h *AdminHandler) NotificationStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.notifications.Status()})
}

// NotificationTest POST /notifications/test.
func (h *AdminHandler) NotificationTest(c *fiber.Ctx) error {
	var req dto.NotificationTestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := h.notifications.SendTest(req.Message); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"queued": true}})
}

// NotificationClear DELETE /notifications/queue.
func (h *AdminHandler) NotificationClear(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{"cleared": h.notifications.Clear()}})
}

// Metrics GET /metrics.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.metrics.Snapshot()})
}
