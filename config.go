package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config centralizes every environment-driven setting.
type Config struct {
	Env  string
	Port string

	DatabaseDSN   string
	DBAutoMigrate bool

	RedisURL string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CORSOrigins []string

	RateLimitWindow time.Duration
	RateLimitMax    int64
	AuthRateWindow  time.Duration
	AuthRateMax     int64

	UploadBase string
}

func loadConfig() Config {
	cfg := Config{
		Env:             envOr("APP_ENV", "development"),
		Port:            envOr("PORT", "8081"),
		DatabaseDSN:     os.Getenv("DB_DSN"),
		DBAutoMigrate:   envBool("DB_AUTO_MIGRATE", true),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		AccessTokenTTL:  envDuration("JWT_EXPIRES_IN", 7*24*time.Hour),
		RefreshTokenTTL: envDuration("JWT_REFRESH_EXPIRES_IN", 30*24*time.Hour),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitMax:    envInt64("RATE_LIMIT_MAX_REQUESTS", 100),
		AuthRateWindow:  15 * time.Minute,
		AuthRateMax:     10,
		UploadBase:      envOr("UPLOAD_BASE", "uploads"),
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-insecure-secret-change" // development fallback
		if cfg.Env == "production" {
			log.Fatal("JWT_SECRET must be set in production")
		}
	}
	cfg.CORSOrigins = parseCORSOrigins(os.Getenv("CORS_ORIGIN"))
	return cfg
}

func parseCORSOrigins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"http://localhost:3000", "http://localhost:5173"}
	}
	return origins
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return !(v == "false" || v == "0" || v == "no")
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration parses Go duration syntax plus a day suffix ("7d", "30d"),
// which is how token lifetimes are conventionally configured.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if strings.HasSuffix(v, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(v, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
