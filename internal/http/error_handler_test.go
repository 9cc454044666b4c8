package handlers_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"tradepost/internal/http/handlers"
)

// friendly error surface, no internal leakage
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	app := fiber.New(fiber.Config{Views: handlers.Views(), ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())

	app.Get("/api/v1/err", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "db timeout: secret trace")
	})
	app.Get("/page/err", func(c *fiber.Ctx) error {
		return io.ErrUnexpectedEOF
	})

	for _, path := range []string{"/api/v1/err", "/page/err"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		if err != nil {
			t.Fatalf("test request failed: %v", err)
		}
		if resp.StatusCode != fiber.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		s := string(body)
		if !strings.Contains(s, "Something went wrong") {
			t.Fatalf("%s: friendly message missing; body=%s", path, s)
		}
		if strings.Contains(s, "db timeout") || strings.Contains(s, "secret") || strings.Contains(s, "unexpected EOF") {
			t.Fatalf("%s: internal details leaked to user; body=%s", path, s)
		}
	}
}

func TestUnknownRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, "GET", "/api/v1/nope", "", nil)
	if resp.StatusCode != fiber.StatusNotFound || !strings.Contains(string(body), `"error"`) {
		t.Fatalf("api 404: %d %s", resp.StatusCode, body)
	}
	resp, body = do(t, app, "GET", "/somewhere", "", nil)
	if resp.StatusCode != fiber.StatusNotFound || !strings.Contains(string(body), "Page not found") {
		t.Fatalf("page 404: %d %s", resp.StatusCode, body)
	}
}
