package handlers

import (
	"time"

	applog "tradepost/internal/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func jsonLimiter(max int, window time.Duration, action string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + action
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, action, nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
}

// Mount registers the JSON API on r (normally the /api/v1 group).
func (d *Deps) Mount(r fiber.Router) {
	user := RequireUser(d.Auth)

	// Auth (login throttled)
	r.Post("/auth/register", jsonLimiter(10, time.Hour, "rate.register.hit"), d.AuthHandler.Register)
	r.Post("/auth/login", jsonLimiter(5, 10*time.Minute, "rate.login.hit"), d.AuthHandler.Login)
	r.Get("/me", user, d.AuthHandler.Me)
	r.Get("/me/items", user, d.ItemHandler.Mine)
	r.Get("/me/bids", user, d.AuctionHandler.MyBids)

	// Catalog
	r.Get("/categories", d.CategoryHandler.List)
	r.Get("/items", d.SearchHandler.Search)
	r.Get("/items/suggest", jsonLimiter(30, 10*time.Second, "rate.suggest.hit"), d.SearchHandler.Suggest)
	r.Get("/items/:id", d.ItemHandler.Detail)
	r.Post("/items", user, d.ItemHandler.Create)

	// Offers
	r.Post("/items/:id/offers", user, d.OfferHandler.Make)
	r.Get("/offers", user, d.OfferHandler.List)
	r.Post("/offers/:id/accept", user, d.OfferHandler.Accept)
	r.Post("/offers/:id/reject", user, d.OfferHandler.Reject)
	r.Post("/offers/:id/withdraw", user, d.OfferHandler.Withdraw)
	r.Post("/offers/:id/counter", user, d.OfferHandler.Counter)

	// Auctions
	r.Get("/auctions", d.AuctionHandler.List)
	r.Post("/auctions", user, d.AuctionHandler.Create)
	r.Get("/auctions/:id", d.AuctionHandler.Get)
	r.Get("/auctions/:id/bids", OptionalUser(d.Auth), d.AuctionHandler.Bids)
	r.Post("/auctions/:id/bids", user, jsonLimiter(20, time.Minute, "rate.bid.hit"), d.AuctionHandler.Bid)
	r.Post("/auctions/:id/cancel", user, d.AuctionHandler.Cancel)

	// Transactions
	tx := r.Group("/transactions", user)
	tx.Get("/", d.TransactionHandler.List)
	tx.Get("/:id", d.TransactionHandler.Get)
	tx.Get("/:id/timeline", d.TransactionHandler.Timeline)
	tx.Get("/:id/receipt", d.TransactionHandler.Receipt)
	tx.Post("/:id/actions/:action", d.TransactionHandler.Action)
	tx.Post("/:id/shipments", d.TransactionHandler.Ship)
	tx.Post("/:id/shipments/:side", d.TransactionHandler.Tracking)
	tx.Post("/:id/confirm-delivery", d.TransactionHandler.ConfirmDelivery)
	tx.Get("/:id/messages", d.MessageHandler.List)
	tx.Post("/:id/messages", d.MessageHandler.Send)

	r.Get("/users/:id/reviews", d.ReviewHandler.ForUser)

	r.Get("/notifications", user, d.NotificationHandler.List)
	r.Post("/notifications/read-all", user, d.NotificationHandler.MarkAllRead)
	r.Post("/notifications/:id/read", user, d.NotificationHandler.MarkRead)

	admin := r.Group("/admin", RequireAdmin(d.Auth))
	admin.Get("/transactions", d.AdminHandler.Transactions)
	admin.Post("/transactions/:id/resolve", d.AdminHandler.Resolve)
	admin.Post("/sweep", d.AdminHandler.Sweep)
}
