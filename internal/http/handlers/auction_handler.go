package handlers

import (
	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type AuctionHandler struct {
	Auctions *services.AuctionService
}

// GET /api/v1/auctions?status=
func (h *AuctionHandler) List(c *fiber.Ctx) error {
	list, err := h.Auctions.List(c.UserContext(), c.Query("status"))
	if err != nil {
		return fail(c, "auctions.list", err)
	}
	return c.JSON(list)
}

// POST /api/v1/auctions
func (h *AuctionHandler) Create(c *fiber.Ctx) error {
	var in services.NewAuction
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	a, err := h.Auctions.Create(c.UserContext(), userID(c), in)
	if err != nil {
		return fail(c, "auctions.create", err)
	}
	applog.Audit(c, "auctions.create", map[string]any{"auction_id": a.ID, "item_id": a.ItemID})
	return c.Status(fiber.StatusCreated).JSON(a)
}

// GET /api/v1/auctions/:id
func (h *AuctionHandler) Get(c *fiber.Ctx) error {
	v, err := h.Auctions.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "auctions.get", err)
	}
	return c.JSON(v)
}

// POST /api/v1/auctions/:id/bids
func (h *AuctionHandler) Bid(c *fiber.Ctx) error {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	v, err := h.Auctions.PlaceBid(c.UserContext(), c.Params("id"), userID(c), in.Amount)
	if err != nil {
		return fail(c, "auctions.bid", err)
	}
	applog.Audit(c, "auctions.bid", map[string]any{"auction_id": v.ID, "amount": in.Amount})
	return c.Status(fiber.StatusCreated).JSON(v)
}

// GET /api/v1/auctions/:id/bids
func (h *AuctionHandler) Bids(c *fiber.Ctx) error {
	bids, err := h.Auctions.Bids(c.UserContext(), c.Params("id"), userID(c))
	if err != nil {
		return fail(c, "auctions.bids", err)
	}
	return c.JSON(bids)
}

// POST /api/v1/auctions/:id/cancel
func (h *AuctionHandler) Cancel(c *fiber.Ctx) error {
	a, err := h.Auctions.Cancel(c.UserContext(), c.Params("id"), userID(c))
	if err != nil {
		return fail(c, "auctions.cancel", err)
	}
	applog.Audit(c, "auctions.cancel", map[string]any{"auction_id": a.ID})
	return c.JSON(a)
}

// GET /api/v1/me/bids
func (h *AuctionHandler) MyBids(c *fiber.Ctx) error {
	rows, err := h.Auctions.MyBids(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, "auctions.mybids", err)
	}
	return c.JSON(rows)
}
