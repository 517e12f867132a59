package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string

	// SiteDir is the static site served to visitors who pass the gate.
	SiteDir string

	// SecretKey signs private-access cookies, CSRF nonces, preview tokens and
	// admin sessions. Rotating it invalidates all of them at once.
	SecretKey string

	// SiteTimezone is the default IANA zone used when a schedule rule does not
	// carry its own timezone.
	SiteTimezone string

	// RedisAddr enables the Redis-backed rolling analytics store when set.
	// Empty means the in-process store is used instead.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PremiumFeatures gates the private-access mechanisms (password, token,
	// signed cookie). This is an entitlement toggle, not a security boundary.
	PremiumFeatures bool

	// NotifyURLs are shoutrrr service URLs pinged when the gate toggles.
	NotifyURLs []string
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Config{
		Environment:     getEnv("GATEHOUSE_ENV", "development"),
		HTTPPort:        getEnv("GATEHOUSE_HTTP_PORT", "8080"),
		DatabasePath:    getEnv("GATEHOUSE_DB_PATH", filepath.Join("data", "gatehouse.db")),
		SiteDir:         getEnv("GATEHOUSE_SITE_DIR", "site"),
		SecretKey:       getEnv("GATEHOUSE_SECRET_KEY", ""),
		SiteTimezone:    getEnv("GATEHOUSE_TIMEZONE", "UTC"),
		RedisAddr:       getEnv("GATEHOUSE_REDIS_ADDR", ""),
		RedisPassword:   getEnv("GATEHOUSE_REDIS_PASSWORD", ""),
		PremiumFeatures: strings.EqualFold(getEnv("GATEHOUSE_PREMIUM", "true"), "true"),
	}

	if raw := getEnv("GATEHOUSE_REDIS_DB", ""); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GATEHOUSE_REDIS_DB %q: %w", raw, err)
		}
		cfg.RedisDB = db
	}

	if urls := getEnv("GATEHOUSE_NOTIFY_URLS", ""); urls != "" {
		for _, u := range strings.Split(urls, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.NotifyURLs = append(cfg.NotifyURLs, u)
			}
		}
	}

	if cfg.SecretKey == "" {
		// Derive a per-boot secret so development works out of the box. Cookies
		// and sessions won't survive a restart without an explicit key.
		cfg.SecretKey = fmt.Sprintf("gatehouse-dev-%d", time.Now().UnixNano())
	}

	if _, err := time.LoadLocation(cfg.SiteTimezone); err != nil {
		return Config{}, fmt.Errorf("invalid GATEHOUSE_TIMEZONE %q: %w", cfg.SiteTimezone, err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// SiteLocation resolves the configured default timezone. Config validation
// guarantees this cannot fail after Load, so errors fall back to UTC.
func (c Config) SiteLocation() *time.Location {
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}
