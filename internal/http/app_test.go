package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"

	"tradepost/internal/archive"
	"tradepost/internal/config"
	"tradepost/internal/http/handlers"
	"tradepost/internal/live"
	"tradepost/internal/repos"
	"tradepost/internal/services"
)

// Full API over an in-memory seeded database
func newTestApp(t *testing.T) (*fiber.App, *sqlx.DB) {
	t.Helper()
	cfg := config.Defaults()
	cfg.DBDSN = ":memory:"
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := repos.Seed(context.Background(), db); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := repos.NewStore(db)
	bus := live.NewMemoryBus()
	notes := services.NewNotificationService(store, bus)
	authSvc := services.NewAuthService(store.Users, "test-secret", time.Hour)
	offers := services.NewOfferService(store, notes, bus, 72*time.Hour)
	auctions := services.NewAuctionService(store, notes, bus, "KRW")
	txs := services.NewTransactionService(store, notes, bus, archive.Nop{}, 30*time.Second)

	deps := handlers.NewDeps(cfg, handlers.Services{
		Auth:          authSvc,
		Items:         services.NewItemService(store),
		Offers:        offers,
		Auctions:      auctions,
		Transactions:  txs,
		Shipping:      services.NewShippingService(txs),
		Messages:      services.NewMessageService(store, notes, bus),
		Reviews:       services.NewReviewService(store),
		Notifications: notes,
		Sweeper:       &services.Sweeper{Auctions: auctions, Offers: offers, Transactions: txs},
	})

	app := fiber.New(fiber.Config{Views: handlers.Views(), ErrorHandler: handlers.ErrorHandler, BodyLimit: 1 << 20})
	app.Server().MaxRequestBodySize = 1 << 20
	app.Use(requestid.New())
	deps.Mount(app.Group("/api/v1"))
	app.Use(handlers.NotFound)
	return app, db
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func login(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, body := do(t, app, "POST", "/api/v1/auth/login", "", map[string]string{
		"email": email, "password": repos.SeedPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" {
		t.Fatalf("login %s: no token in %s", email, body)
	}
	return out.Token
}

func decode(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}
