package handlers

import (
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

type ReviewHandler struct {
	Reviews *services.ReviewService
}

// GET /api/v1/users/:id/reviews
func (h *ReviewHandler) ForUser(c *fiber.Ctx) error {
	res, err := h.Reviews.ForUser(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, "reviews.list", err)
	}
	return c.JSON(res)
}
