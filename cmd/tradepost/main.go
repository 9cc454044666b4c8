package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tradepost/internal/archive"
	"tradepost/internal/config"
	"tradepost/internal/countdown"
	"tradepost/internal/http/handlers"
	"tradepost/internal/live"
	applog "tradepost/internal/log"
	"tradepost/internal/repos"
	"tradepost/internal/services"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Optional file logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			defer f.Close()
			out = io.MultiWriter(os.Stdout, f)
		}
	}
	applog.Setup(out, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if cfg.Auth.SeedUsers {
		if err := repos.Seed(ctx, db); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	store := repos.NewStore(db)

	// Live bus: redis when configured so several instances share updates
	var bus live.Bus = live.NewMemoryBus()
	if cfg.Redis.Addr != "" {
		rb, err := live.NewRedisBus(ctx, live.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		defer rb.Close()
		bus = rb
	}

	var arch archive.Archiver = archive.Nop{}
	if cfg.S3.Bucket != "" {
		w, err := archive.NewS3Writer(ctx, archive.S3Config{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return err
		}
		arch = archive.NewBlobArchiver(w)
	}

	// Services
	notes := services.NewNotificationService(store, bus)
	authSvc := services.NewAuthService(store.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	items := services.NewItemService(store)
	offers := services.NewOfferService(store, notes, bus, cfg.Market.OfferTTL.Duration)
	auctions := services.NewAuctionService(store, notes, bus, cfg.Market.Currency)
	txs := services.NewTransactionService(store, notes, bus, arch, cfg.Market.PollInterval.Duration)

	scheduler := countdown.NewScheduler(cfg.Market.CountdownTick.Duration, auctions)
	auctions.SetWatcher(scheduler)

	sweeper := &services.Sweeper{
		Auctions:     auctions,
		Offers:       offers,
		Transactions: txs,
		Interval:     cfg.Market.SweepInterval.Duration,
		ReviewWindow: cfg.Market.ReviewWindow.Duration,
	}

	deps := handlers.NewDeps(cfg, handlers.Services{
		Auth:          authSvc,
		Items:         items,
		Offers:        offers,
		Auctions:      auctions,
		Transactions:  txs,
		Shipping:      services.NewShippingService(txs),
		Messages:      services.NewMessageService(store, notes, bus),
		Reviews:       services.NewReviewService(store),
		Notifications: notes,
		Sweeper:       sweeper,
	})
	app := newApp(deps, db)

	hub := live.NewHub(bus, &services.LiveBackend{Auth: authSvc, Items: items, Transactions: txs}, cfg.Market.SearchDebounce.Duration)
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	liveSrv := &http.Server{Addr: cfg.LiveAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx, auctions.Deadlines) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		applog.Event("live.listen", map[string]any{"addr": cfg.LiveAddr})
		if err := liveSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		applog.Event("http.listen", map[string]any{"port": cfg.Port})
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = liveSrv.Shutdown(sctx)
		return app.ShutdownWithContext(sctx)
	})
	err = g.Wait()
	applog.Event("shutdown", nil)
	return err
}

func newApp(deps *handlers.Deps, db *sqlx.DB) *fiber.App {
	app := fiber.New(fiber.Config{
		Views:                 handlers.Views(),
		ErrorHandler:          handlers.ErrorHandler,
		BodyLimit:             1 << 20,
		DisableStartupMessage: true,
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return p == "/healthz" || p == "/metrics"
		},
	}))

	// ---------- API ----------
	api := app.Group("/api/v1")
	deps.Mount(api)

	// Health, metrics & 404
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			applog.Error(c, "health.db.fail", err, nil)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"ok": false})
		}
		return c.JSON(fiber.Map{"ok": true})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Use(handlers.NotFound)
	return app
}
