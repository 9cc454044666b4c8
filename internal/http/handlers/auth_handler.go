package handlers

import (
	applog "tradepost/internal/log"
	"tradepost/internal/services"
	"tradepost/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	u, err := h.Auth.Register(c.UserContext(), in.Email, in.Name, in.Password)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	tok, err := h.Auth.Issue(*u)
	if err != nil {
		return fail(c, "auth.register", err)
	}
	applog.Audit(c, "auth.register", map[string]any{"user_id": u.ID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": tok, "user": u})
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in credentials
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	email, ok := validate.Email(in.Email)
	if !ok {
		applog.Security(c, "auth.login.fail", map[string]any{"reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": services.ErrBadCreds.Error()})
	}
	tok, u, err := h.Auth.Login(c.UserContext(), email, in.Password)
	if err != nil {
		applog.Security(c, "auth.login.fail", map[string]any{"email": email})
		return fail(c, "auth.login", err)
	}
	applog.Audit(c, "auth.login.success", map[string]any{"user_id": u.ID})
	return c.JSON(fiber.Map{"token": tok, "user": u})
}

// GET /api/v1/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, err := h.Auth.Me(c.UserContext(), userID(c))
	if err != nil {
		return fail(c, "auth.me", err)
	}
	return c.JSON(u)
}
