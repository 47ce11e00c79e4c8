package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often a pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	// AuthSecret signs and verifies the HS256 bearer tokens that identify
	// the acting manager. When unset outside prod, the X-Manager-ID dev
	// fallback applies.
	AuthSecret string

	// AllowedOrigins is the allowlist of origins permitted to call the
	// dashboard endpoints from a browser.
	AllowedOrigins []string

	Engine EngineConfig
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

// EngineConfig collects reconciliation policy knobs. The values are business
// choices carried over from the original ledger, not derived invariants.
type EngineConfig struct {
	// PendingTimeout is how long a pending payment may stay unconfirmed
	// before the sweep auto-rejects it.
	PendingTimeout time.Duration

	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration

	// MonthlyChangeLimit caps a monthly-payment edit relative to its
	// previous value, as a fraction (0.5 means ±50%).
	MonthlyChangeLimit string

	// Tolerance is the amount below which two money values are equal.
	Tolerance string
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "installments"),
			User:     env("DB_USER", "installments"),
			Password: env("DB_PASSWORD", "installments"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		AllowedOrigins: envList("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"),
		Engine: EngineConfig{
			PendingTimeout:     envDuration("PENDING_TIMEOUT", 24*time.Hour),
			SweepInterval:      envDuration("SWEEP_INTERVAL", time.Hour),
			MonthlyChangeLimit: env("MONTHLY_CHANGE_LIMIT", "0.5"),
			Tolerance:          env("AMOUNT_TOLERANCE", "0.01"),
		},
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// Accept plain hours for operator convenience.
	if h, err := strconv.Atoi(v); err == nil && h > 0 {
		return time.Duration(h) * time.Hour
	}
	return fallback
}

func envList(key, fallbackCSV string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = fallbackCSV
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
