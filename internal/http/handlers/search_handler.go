package handlers

import (
	"net/url"

	"tradepost/internal/search"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type SearchHandler struct {
	Items *services.ItemService
}

// GET /api/v1/items
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		q.Add(string(k), string(v))
	})
	res, err := h.Items.Search(c.UserContext(), search.ParseFilter(q))
	if err != nil {
		return fail(c, "items.search", err)
	}
	return c.JSON(res)
}

// GET /api/v1/items/suggest?q=
func (h *SearchHandler) Suggest(c *fiber.Ctx) error {
	res, err := h.Items.Suggest(c.UserContext(), c.Query("q"))
	if err != nil {
		return fail(c, "items.suggest", err)
	}
	return c.JSON(res)
}
