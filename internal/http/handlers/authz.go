package handlers

import (
	"strings"

	"tradepost/internal/domain"
	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// identify verifies the bearer token and stores the caller in Locals.
func identify(c *fiber.Ctx, auth *services.AuthService) bool {
	tok := bearer(c)
	if tok == "" {
		return false
	}
	claims, err := auth.Verify(tok)
	if err != nil {
		applog.Security(c, "auth.token.invalid", nil)
		return false
	}
	c.Locals("user_id", claims.Subject)
	c.Locals("role", claims.Role)
	return true
}

// RequireUser rejects requests without a valid bearer token.
func RequireUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identify(c, auth) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		return c.Next()
	}
}

func RequireAdmin(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !identify(c, auth) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
		}
		if role, _ := c.Locals("role").(string); role != domain.RoleAdmin {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "access denied"})
		}
		return c.Next()
	}
}

// OptionalUser identifies the caller when a token is present, for public
// routes that personalize their answer.
func OptionalUser(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identify(c, auth)
		return c.Next()
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

func viewer(c *fiber.Ctx) services.Viewer {
	role, _ := c.Locals("role").(string)
	return services.Viewer{ID: userID(c), Role: role}
}
