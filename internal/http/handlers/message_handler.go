package handlers

import (
	"time"

	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	Messages *services.MessageService
}

// GET /api/v1/transactions/:id/messages?since=RFC3339
func (h *MessageHandler) List(c *fiber.Ctx) error {
	var since time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return badRequest(c, "since must be an RFC3339 time")
		}
		since = t
	}
	msgs, err := h.Messages.List(c.UserContext(), c.Params("id"), userID(c), since)
	if err != nil {
		return fail(c, "messages.list", err)
	}
	return c.JSON(msgs)
}

// POST /api/v1/transactions/:id/messages
func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var in struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	m, err := h.Messages.Send(c.UserContext(), c.Params("id"), userID(c), in.Body)
	if err != nil {
		return fail(c, "messages.send", err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}
