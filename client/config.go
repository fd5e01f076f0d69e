// Environment-driven configuration for applications that prefer env vars
// over wiring options by hand. A .env file is honoured when present.
package client

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tidewatch/tidesync/cache"
)

// Config holds the env-tunable client settings.
type Config struct {
	Server    string  // TIDESYNC_SERVER: Production|Development|Staging
	DBPath    string  // TIDESYNC_DB_PATH: SQLite cache path
	LogLevel  string  // TIDESYNC_LOG_LEVEL: debug|info|warn|error
	DebugHTTP bool    // TIDESYNC_DEBUG: dump round trips
	RateRPS   float64 // TIDESYNC_RATE_RPS: outgoing requests/sec, 0 = unlimited
	RateBurst int     // TIDESYNC_RATE_BURST: bucket size
}

// LoadConfig reads configuration from the environment (loading .env first,
// best effort), applies defaults and validates the result.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server:    getenv("TIDESYNC_SERVER", Production),
		DBPath:    getenv("TIDESYNC_DB_PATH", "tidesync.db"),
		LogLevel:  strings.ToLower(getenv("TIDESYNC_LOG_LEVEL", "info")),
		DebugHTTP: getbool("TIDESYNC_DEBUG", false),
		RateRPS:   getfloat("TIDESYNC_RATE_RPS", 0),
		RateBurst: getint("TIDESYNC_RATE_BURST", 10),
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, errors.New("TIDESYNC_LOG_LEVEL must be a valid zerolog level")
	}
	if _, err := ResolveEnvironment(cfg.Server); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("TIDESYNC_DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("TIDESYNC_RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("TIDESYNC_RATE_BURST must be >= 1")
	}
	return cfg, nil
}

// NewFromEnv opens the cache and constructs a Client entirely from
// environment configuration. The global log level is set as a side effect.
func NewFromEnv(opts ...Option) (*Client, *gorm.DB, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)

	db, err := cache.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cache.Migrate(db); err != nil {
		return nil, nil, err
	}

	all := []Option{
		WithDebugLogging(cfg.DebugHTTP),
		WithRateLimit(cfg.RateRPS, cfg.RateBurst),
	}
	all = append(all, opts...)

	c, err := New(db, cfg.Server, all...)
	if err != nil {
		return nil, nil, err
	}
	return c, db, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
