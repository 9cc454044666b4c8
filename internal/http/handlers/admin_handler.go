package handlers

import (
	"strings"

	"tradepost/internal/lifecycle"
	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Tx      *services.TransactionService
	Sweeper *services.Sweeper
}

// GET /api/v1/admin/transactions?status=DISPUTED
func (h *AdminHandler) Transactions(c *fiber.Ctx) error {
	list, err := h.Tx.ListAll(c.UserContext(), viewer(c), strings.ToUpper(c.Query("status")))
	if err != nil {
		return fail(c, "admin.tx.list", err)
	}
	return c.JSON(list)
}

// POST /api/v1/admin/transactions/:id/resolve
func (h *AdminHandler) Resolve(c *fiber.Ctx) error {
	var in services.ActionInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Outcome = strings.ToUpper(in.Outcome)
	d, err := h.Tx.Apply(c.UserContext(), c.Params("id"), viewer(c), lifecycle.ResolveDispute, in)
	if err != nil {
		return fail(c, "admin.tx.resolve", err)
	}
	applog.Audit(c, "admin.tx.resolve", map[string]any{"tx_id": d.ID, "outcome": in.Outcome, "status": d.Status})
	return c.JSON(d)
}

// POST /api/v1/admin/sweep runs one sweeper pass now.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	res := h.Sweeper.Sweep(c.UserContext())
	applog.Audit(c, "admin.sweep", map[string]any{
		"auctions_closed": res.AuctionsClosed,
		"offers_expired":  res.OffersExpired,
		"auto_completed":  res.AutoCompleted,
	})
	return c.JSON(res)
}
