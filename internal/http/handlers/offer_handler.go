package handlers

import (
	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type OfferHandler struct {
	Offers *services.OfferService
}

// POST /api/v1/items/:id/offers
func (h *OfferHandler) Make(c *fiber.Ctx) error {
	var in services.Terms
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	o, err := h.Offers.Make(c.UserContext(), userID(c), c.Params("id"), in)
	if err != nil {
		return fail(c, "offers.make", err)
	}
	applog.Audit(c, "offers.make", map[string]any{"offer_id": o.ID, "item_id": o.ItemID, "type": o.Type})
	return c.Status(fiber.StatusCreated).JSON(o)
}

// GET /api/v1/offers?role=buyer|seller
func (h *OfferHandler) List(c *fiber.Ctx) error {
	list, err := h.Offers.List(c.UserContext(), userID(c), c.Query("role"))
	if err != nil {
		return fail(c, "offers.list", err)
	}
	return c.JSON(list)
}

// POST /api/v1/offers/:id/accept
func (h *OfferHandler) Accept(c *fiber.Ctx) error {
	t, err := h.Offers.Accept(c.UserContext(), c.Params("id"), userID(c))
	if err != nil {
		return fail(c, "offers.accept", err)
	}
	applog.Audit(c, "offers.accept", map[string]any{"offer_id": c.Params("id"), "tx_id": t.ID})
	return c.Status(fiber.StatusCreated).JSON(t)
}

// POST /api/v1/offers/:id/reject
func (h *OfferHandler) Reject(c *fiber.Ctx) error {
	o, err := h.Offers.Reject(c.UserContext(), c.Params("id"), userID(c))
	if err != nil {
		return fail(c, "offers.reject", err)
	}
	applog.Audit(c, "offers.reject", map[string]any{"offer_id": o.ID})
	return c.JSON(o)
}

// POST /api/v1/offers/:id/withdraw
func (h *OfferHandler) Withdraw(c *fiber.Ctx) error {
	o, err := h.Offers.Withdraw(c.UserContext(), c.Params("id"), userID(c))
	if err != nil {
		return fail(c, "offers.withdraw", err)
	}
	applog.Audit(c, "offers.withdraw", map[string]any{"offer_id": o.ID})
	return c.JSON(o)
}

// POST /api/v1/offers/:id/counter
func (h *OfferHandler) Counter(c *fiber.Ctx) error {
	var in services.Terms
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	o, err := h.Offers.Counter(c.UserContext(), c.Params("id"), userID(c), in)
	if err != nil {
		return fail(c, "offers.counter", err)
	}
	applog.Audit(c, "offers.counter", map[string]any{"offer_id": o.ID, "parent_id": c.Params("id")})
	return c.Status(fiber.StatusCreated).JSON(o)
}
