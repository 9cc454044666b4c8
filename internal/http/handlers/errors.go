package handlers

import (
	"errors"
	"strings"

	applog "tradepost/internal/log"
	"tradepost/internal/services"

	"github.com/gofiber/fiber/v2"
)

const friendlyError = "Something went wrong. Please try again."

// fail turns a service error into a JSON answer. Anything it does not
// recognise goes to the app ErrorHandler.
func fail(c *fiber.Ctx, action string, err error) error {
	status := 0
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
		applog.Security(c, "access.denied", map[string]any{"op": action})
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrBadCreds):
		status = fiber.StatusUnauthorized
	case errors.Is(err, services.ErrConflict),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrAuctionClosed),
		errors.Is(err, services.ErrEmailTaken):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrBidTooLow):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
		applog.Info(c, "validation.fail", map[string]any{"op": action, "reason": err.Error()})
	}
	if status == 0 {
		applog.Error(c, action+".fail", err, nil)
		return err
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ErrorHandler logs the cause and answers without internals. Client
// errors raised by fiber itself (404, 413, 429) keep their message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	applog.Error(c, "server.error", err, nil)
	c.Status(fiber.StatusInternalServerError)
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.JSON(fiber.Map{"error": friendlyError})
	}
	if rerr := render(c, "notfound", fiber.Map{"Message": friendlyError}); rerr != nil {
		return c.SendString(friendlyError)
	}
	return nil
}

// NotFound is the fallback route.
func NotFound(c *fiber.Ctx) error {
	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}
	return c.Status(fiber.StatusNotFound).Render("notfound", fiber.Map{"Message": "Page not found"})
}
