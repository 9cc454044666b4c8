package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "tradepost/internal/log"
)

type line struct {
	TS     string         `json:"ts"`
	Level  string         `json:"level"`
	Action string         `json:"action"`
	ReqID  string         `json:"req_id"`
	Path   string         `json:"path"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

func decode(t *testing.T, buf *bytes.Buffer) []line {
	t.Helper()
	var out []line
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var l line
		if err := json.Unmarshal([]byte(raw), &l); err != nil {
			t.Fatalf("not json: %q: %v", raw, err)
		}
		out = append(out, l)
	}
	return out
}

func TestRequestScopedEntries(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)

	app := fiber.New()
	app.Use(requestid.New())
	app.Get("/x", func(c *fiber.Ctx) error {
		applog.Audit(c, "offer.accept", map[string]any{"offer_id": "o-1"})
		applog.Error(c, "offer.accept.fail", errors.New("boom"), nil)
		return c.SendStatus(fiber.StatusNoContent)
	})
	if _, err := app.Test(httptest.NewRequest("GET", "/x", nil)); err != nil {
		t.Fatal(err)
	}

	lines := decode(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	a := lines[0]
	if a.Level != "audit" || a.Action != "offer.accept" || a.ReqID == "" || a.Path != "/x" || a.TS == "" {
		t.Fatalf("bad audit entry: %+v", a)
	}
	if a.Fields["offer_id"] != "o-1" {
		t.Fatalf("fields lost: %+v", a.Fields)
	}
	if lines[1].Level != "error" || lines[1].Err != "boom" {
		t.Fatalf("bad error entry: %+v", lines[1])
	}
}

func TestBackgroundEntries(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)

	applog.Event("auction.closed", map[string]any{"auction_id": "a-1"})
	applog.Debug("sweep.tick", nil) // below info, dropped

	lines := decode(t, &buf)
	if len(lines) != 1 || lines[0].Level != "info" || lines[0].Action != "auction.closed" {
		t.Fatalf("unexpected entries: %s", buf.String())
	}
}
