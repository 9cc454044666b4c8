package handlers

import (
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type CategoryHandler struct {
	Items *services.ItemService
}

// GET /api/v1/categories
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Items.Categories(c.UserContext())
	if err != nil {
		return fail(c, "categories.list", err)
	}
	return c.JSON(cats)
}
