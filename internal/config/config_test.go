package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"tradepost/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRADEPOST_CONFIG", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Market.PollInterval.Duration != 30*time.Second {
		t.Fatalf("want 30s poll interval, got %v", cfg.Market.PollInterval)
	}
	if cfg.Market.SweepInterval.Duration != 10*time.Second {
		t.Fatalf("want 10s sweep interval, got %v", cfg.Market.SweepInterval)
	}
	if cfg.Market.CountdownTick.Duration != time.Second {
		t.Fatalf("want 1s countdown tick, got %v", cfg.Market.CountdownTick)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradepost.toml")
	body := `
port = "9000"
db_dsn = "file.db"

[market]
currency = "USD"
offer_ttl = "24h"

[redis]
addr = "localhost:6379"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRADEPOST_CONFIG", path)
	t.Setenv("DB_DSN", ":memory:")
	t.Setenv("TRADEPOST_REVIEW_WINDOW", "48h")
	t.Setenv("TRADEPOST_REDIS_DB", "not-a-number")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9000" || cfg.Market.Currency != "USD" || cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.DBDSN != ":memory:" {
		t.Fatalf("env should override file dsn, got %q", cfg.DBDSN)
	}
	if cfg.Market.OfferTTL.Duration != 24*time.Hour || cfg.Market.ReviewWindow.Duration != 48*time.Hour {
		t.Fatalf("durations: ttl=%v window=%v", cfg.Market.OfferTTL, cfg.Market.ReviewWindow)
	}
	if cfg.Redis.DB != 0 {
		t.Fatalf("malformed int must be ignored, got %d", cfg.Redis.DB)
	}
}

func TestLoadRejectsEmptySecret(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[auth]\njwt_secret = \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRADEPOST_CONFIG", path)
	if _, err := config.Load(); err == nil {
		t.Fatal("expected validation error for empty jwt secret")
	}
}
