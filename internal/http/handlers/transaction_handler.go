package handlers

import (
	"strings"
	"time"

	"tradepost/internal/format"
	"tradepost/internal/lifecycle"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	Tx       *services.TransactionService
	Shipping *services.ShippingService
	Currency string
	Now      func() time.Time
}

// GET /api/v1/transactions?role=&status=
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	f := repos.TxFilter{Role: c.Query("role"), Status: strings.ToUpper(c.Query("status"))}
	list, err := h.Tx.List(c.UserContext(), viewer(c), f)
	if err != nil {
		return fail(c, "tx.list", err)
	}
	return c.JSON(list)
}

// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	d, err := h.Tx.Get(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return fail(c, "tx.get", err)
	}
	return c.JSON(d)
}

// GET /api/v1/transactions/:id/timeline
func (h *TransactionHandler) Timeline(c *fiber.Ctx) error {
	evs, err := h.Tx.Timeline(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return fail(c, "tx.timeline", err)
	}
	return c.JSON(evs)
}

// parseAction accepts "confirm-delivery", "confirm_delivery" or "CONFIRM_DELIVERY".
func parseAction(s string) (lifecycle.Action, bool) {
	return lifecycle.ParseAction(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
}

// POST /api/v1/transactions/:id/actions/:action
func (h *TransactionHandler) Action(c *fiber.Ctx) error {
	a, ok := parseAction(c.Params("action"))
	if !ok {
		return badRequest(c, "unknown action")
	}
	var in services.ActionInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	d, err := h.Tx.Apply(c.UserContext(), c.Params("id"), viewer(c), a, in)
	if err != nil {
		return fail(c, "tx.action", err)
	}
	applog.Audit(c, "tx.action", map[string]any{"tx_id": d.ID, "action": string(a), "status": d.Status})
	return c.JSON(d)
}

// POST /api/v1/transactions/:id/shipments
func (h *TransactionHandler) Ship(c *fiber.Ctx) error {
	var in struct {
		Carrier        string `json:"carrier"`
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	d, err := h.Shipping.RecordShipment(c.UserContext(), c.Params("id"), viewer(c), in.Carrier, in.TrackingNumber)
	if err != nil {
		return fail(c, "tx.ship", err)
	}
	applog.Audit(c, "tx.ship", map[string]any{"tx_id": d.ID, "status": d.Status})
	return c.JSON(d)
}

// POST /api/v1/transactions/:id/shipments/:side
func (h *TransactionHandler) Tracking(c *fiber.Ctx) error {
	var in struct {
		State string `json:"state"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	side := strings.ToUpper(c.Params("side"))
	d, err := h.Shipping.UpdateTracking(c.UserContext(), c.Params("id"), viewer(c), side, strings.ToUpper(in.State))
	if err != nil {
		return fail(c, "tx.tracking", err)
	}
	applog.Audit(c, "tx.tracking", map[string]any{"tx_id": d.ID, "side": side, "status": d.Status})
	return c.JSON(d)
}

// POST /api/v1/transactions/:id/confirm-delivery
func (h *TransactionHandler) ConfirmDelivery(c *fiber.Ctx) error {
	d, err := h.Shipping.ConfirmDelivery(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return fail(c, "tx.confirm", err)
	}
	applog.Audit(c, "tx.confirm", map[string]any{"tx_id": d.ID, "status": d.Status})
	return c.JSON(d)
}

// GET /api/v1/transactions/:id/receipt
func (h *TransactionHandler) Receipt(c *fiber.Ctx) error {
	d, err := h.Tx.Get(c.UserContext(), c.Params("id"), viewer(c))
	if err != nil {
		return fail(c, "tx.receipt", err)
	}
	return render(c, "receipt", fiber.Map{
		"Tx":       d.Transaction,
		"Detail":   d,
		"Type":     strings.ReplaceAll(strings.ToLower(d.Type), "_", " "),
		"Step":     lifecycle.StepLabel(lifecycle.Status(d.Status)),
		"Updated":  format.Relative(d.UpdatedAt, h.Now()),
		"Currency": h.Currency,
	})
}
