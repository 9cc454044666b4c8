package handlers

import (
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type NotificationHandler struct {
	Notes *services.NotificationService
}

// GET /api/v1/notifications?unread=true
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	inbox, err := h.Notes.List(c.UserContext(), userID(c), c.QueryBool("unread"))
	if err != nil {
		return fail(c, "notifications.list", err)
	}
	return c.JSON(inbox)
}

// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.Notes.MarkRead(c.UserContext(), userID(c), c.Params("id")); err != nil {
		return fail(c, "notifications.read", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	n, err := h.Notes.MarkAllRead(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, "notifications.readall", err)
	}
	return c.JSON(fiber.Map{"updated": n})
}
