package handlers

import (
	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ItemHandler struct {
	Items *services.ItemService
}

// GET /api/v1/items/:id
func (h *ItemHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "item not found"})
	}
	d, err := h.Items.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "items.get", err)
	}
	return c.JSON(d)
}

// POST /api/v1/items
func (h *ItemHandler) Create(c *fiber.Ctx) error {
	var in services.NewItem
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	it, err := h.Items.Create(c.UserContext(), userID(c), in)
	if err != nil {
		return fail(c, "items.create", err)
	}
	applog.Audit(c, "items.create", map[string]any{"item_id": it.ID})
	return c.Status(fiber.StatusCreated).JSON(it)
}

// GET /api/v1/me/items
func (h *ItemHandler) Mine(c *fiber.Ctx) error {
	items, err := h.Items.ListBySeller(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, "items.mine", err)
	}
	return c.JSON(items)
}
