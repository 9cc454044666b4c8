package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `toml:"port"`
	LiveAddr  string `toml:"live_addr"`
	DBDSN     string `toml:"db_dsn"`
	LogFile   string `toml:"log_file"`
	LogLevel  string `toml:"log_level"`
	LogPretty bool   `toml:"log_pretty"`

	Auth   AuthConfig   `toml:"auth"`
	Redis  RedisConfig  `toml:"redis"`
	S3     S3Config     `toml:"s3"`
	Market MarketConfig `toml:"market"`
}

type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
	SeedUsers bool     `toml:"seed_users"`
}

// RedisConfig is optional; without an address the live bus stays in-process.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3Config is optional; without a bucket archived transactions are dropped.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

type MarketConfig struct {
	Currency       string   `toml:"currency"`
	PollInterval   Duration `toml:"poll_interval"`
	SweepInterval  Duration `toml:"sweep_interval"`
	CountdownTick  Duration `toml:"countdown_tick"`
	OfferTTL       Duration `toml:"offer_ttl"`
	ReviewWindow   Duration `toml:"review_window"`
	SearchDebounce Duration `toml:"search_debounce"`
}

// Duration decodes TOML strings like "30s" or "72h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Defaults() Config {
	return Config{
		Port:     "8080",
		LiveAddr: ":8090",
		DBDSN:    "tradepost.db", // sqlite file in project root
		LogFile:  "",
		LogLevel: "info",
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me",
			TokenTTL:  Duration{24 * time.Hour},
			SeedUsers: true,
		},
		Redis: RedisConfig{PoolSize: 10},
		S3:    S3Config{Region: "us-east-1", UseSSL: true},
		Market: MarketConfig{
			Currency:       "KRW",
			PollInterval:   Duration{30 * time.Second},
			SweepInterval:  Duration{10 * time.Second},
			CountdownTick:  Duration{time.Second},
			OfferTTL:       Duration{72 * time.Hour},
			ReviewWindow:   Duration{7 * 24 * time.Hour},
			SearchDebounce: Duration{300 * time.Millisecond},
		},
	}
}

// Load starts from Defaults, merges the TOML file named by TRADEPOST_CONFIG
// (if any), then applies environment overrides. A .env file in the working
// directory is loaded first when present.
func Load() (Config, error) {
	cfg := Defaults()

	_ = godotenv.Load()

	if path := os.Getenv("TRADEPOST_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("config: DB_DSN is empty")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: jwt secret is empty")
	}
	if c.Market.SweepInterval.Duration <= 0 || c.Market.CountdownTick.Duration <= 0 {
		return fmt.Errorf("config: sweep interval and countdown tick must be positive")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// plain names kept for existing deployments
	setStr(&cfg.Port, "PORT")
	setStr(&cfg.DBDSN, "DB_DSN")
	setStr(&cfg.LogFile, "LOG_FILE")

	setStr(&cfg.Port, "TRADEPOST_PORT")
	setStr(&cfg.LiveAddr, "TRADEPOST_LIVE_ADDR")
	setStr(&cfg.DBDSN, "TRADEPOST_DB_DSN")
	setStr(&cfg.LogFile, "TRADEPOST_LOG_FILE")
	setStr(&cfg.LogLevel, "TRADEPOST_LOG_LEVEL")
	setBool(&cfg.LogPretty, "TRADEPOST_LOG_PRETTY")

	setStr(&cfg.Auth.JWTSecret, "TRADEPOST_JWT_SECRET")
	setDuration(&cfg.Auth.TokenTTL, "TRADEPOST_TOKEN_TTL")
	setBool(&cfg.Auth.SeedUsers, "TRADEPOST_SEED_USERS")

	setStr(&cfg.Redis.Addr, "TRADEPOST_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADEPOST_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADEPOST_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADEPOST_REDIS_POOL_SIZE")

	setStr(&cfg.S3.Endpoint, "TRADEPOST_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADEPOST_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADEPOST_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADEPOST_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADEPOST_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADEPOST_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADEPOST_S3_FORCE_PATH_STYLE")

	setStr(&cfg.Market.Currency, "TRADEPOST_CURRENCY")
	setDuration(&cfg.Market.PollInterval, "TRADEPOST_POLL_INTERVAL")
	setDuration(&cfg.Market.SweepInterval, "TRADEPOST_SWEEP_INTERVAL")
	setDuration(&cfg.Market.CountdownTick, "TRADEPOST_COUNTDOWN_TICK")
	setDuration(&cfg.Market.OfferTTL, "TRADEPOST_OFFER_TTL")
	setDuration(&cfg.Market.ReviewWindow, "TRADEPOST_REVIEW_WINDOW")
	setDuration(&cfg.Market.SearchDebounce, "TRADEPOST_SEARCH_DEBOUNCE")
}

func setStr(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
