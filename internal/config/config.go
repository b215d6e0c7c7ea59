// Package config provides centralized configuration loaded from environment
// variables. Shared by every subcommand of cmd/notifier.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	UsersTable       = "users"
	UserCoursesTable = "user_courses"
	ClassSlotsTable  = "class_slots"
	CourseInfoTable  = "course_info"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Push / FCM
	FCMCredentialsFile string
	FCMCredentialsJSON string // full service-account JSON (cloud hosting)

	// Notification cycle
	LookaheadMinutes  int           // default lead time before class start
	MatchTolerance    int           // ± minutes around the target minute
	CycleInterval     time.Duration // cadence of the scheduler loop
	Timezone          string        // IANA name used for timetable wall clocks
	DispatchWorkers   int           // concurrent FCM sends per cycle
	SendRatePerSecond int           // FCM send rate cap, 0 = unlimited
	AutoStart         bool          // start the loop on serve

	// Dedup ledger
	RedisAddr string // empty = in-memory ledger

	// OTP email
	ResendAPIKey string
	EmailFrom    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	cfg := &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 5000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		FCMCredentialsFile: envOr("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		FCMCredentialsJSON: envOr("FIREBASE_CREDENTIALS", ""),

		LookaheadMinutes:  envInt("NOTIFY_LOOKAHEAD_MINUTES", 10),
		MatchTolerance:    envInt("MATCH_TOLERANCE_MINUTES", 1),
		CycleInterval:     time.Duration(envInt("CYCLE_INTERVAL_SECONDS", 60)) * time.Second,
		Timezone:          envOr("NOTIFY_TIMEZONE", "Asia/Kolkata"),
		DispatchWorkers:   envInt("DISPATCH_WORKERS", 10),
		SendRatePerSecond: envInt("SEND_RATE_PER_SECOND", 50),
		AutoStart:         envBool("NOTIFY_AUTOSTART", true),

		RedisAddr: envOr("REDIS_ADDR", ""),

		ResendAPIKey: envOr("RESEND_API_KEY", ""),
		EmailFrom:    envOr("EMAIL_FROM", "nextClass <noreply@nextclass.app>"),
	}

	if cfg.LookaheadMinutes < 1 || cfg.LookaheadMinutes > 60 {
		return nil, fmt.Errorf("NOTIFY_LOOKAHEAD_MINUTES must be between 1 and 60, got %d", cfg.LookaheadMinutes)
	}
	if cfg.MatchTolerance < 0 {
		return nil, fmt.Errorf("MATCH_TOLERANCE_MINUTES must be >= 0, got %d", cfg.MatchTolerance)
	}
	if cfg.CycleInterval < time.Second {
		return nil, fmt.Errorf("CYCLE_INTERVAL_SECONDS must be >= 1, got %s", cfg.CycleInterval)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("NOTIFY_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the configured timetable timezone.
// Load has already validated the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// PushConfigured reports whether FCM credentials were supplied.
func (c *Config) PushConfigured() bool {
	return c.FCMCredentialsFile != "" || c.FCMCredentialsJSON != ""
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
