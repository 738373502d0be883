package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalogue sources.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceUpstream = "upstream"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// Config aggregates application-wide configuration values.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	CatalogSource   string
	CatalogFile     string
	CatalogRefresh  time.Duration
	DatabaseURL     string
	UpstreamBaseURL string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration

	RateLimitSearch RateLimitConfig

	JWTSecret         string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string

	PhoneRegion string
}

// Development reports whether the service runs with developer defaults.
func (c *Config) Development() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables and applies sane defaults.
// Every parse failure names the offending variable.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               strings.ToLower(getEnv("APP_ENV", "production")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CatalogSource:     strings.ToLower(getEnv("CATALOG_SOURCE", SourceStatic)),
		CatalogFile:       os.Getenv("CATALOG_FILE"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		UpstreamBaseURL:   os.Getenv("UPSTREAM_BASE_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AdminEmail:        os.Getenv("ADMIN_EMAIL"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		PhoneRegion:       strings.ToUpper(getEnv("PHONE_REGION", "IN")),
	}

	var errs []error
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"CATALOG_REFRESH", "5m", &cfg.CatalogRefresh},
		{"SEARCH_CACHE_TTL", "60s", &cfg.SearchCacheTTL},
		{"JWT_TTL", "24h", &cfg.TokenTTL},
	}
	for _, d := range durations {
		v, err := parseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s value: %w", d.key, err))
			continue
		}
		*d.dst = v
	}

	if raw := getEnv("REDIS_DB", "0"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			errs = append(errs, fmt.Errorf("invalid REDIS_DB value: %q", raw))
		}
		cfg.RedisDB = db
	}

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_SEARCH", "120/min"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid RATE_LIMIT_SEARCH value: %w", err))
	}
	cfg.RateLimitSearch = rl

	switch cfg.CatalogSource {
	case SourceStatic:
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when CATALOG_SOURCE=postgres"))
		}
	case SourceUpstream:
		if cfg.UpstreamBaseURL == "" {
			errs = append(errs, errors.New("UPSTREAM_BASE_URL is required when CATALOG_SOURCE=upstream"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CATALOG_SOURCE value: %q (want static, postgres or upstream)", cfg.CatalogSource))
	}

	if cfg.JWTSecret == "" {
		if cfg.Development() {
			cfg.JWTSecret = "dev-secret"
		} else if cfg.AdminEmail != "" {
			errs = append(errs, errors.New("JWT_SECRET is required when ADMIN_EMAIL is set"))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	if strings.EqualFold(strings.TrimSpace(value), "off") {
		return RateLimitConfig{}, nil
	}

	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func parseDuration(input string) (time.Duration, error) {
	d, err := time.ParseDuration(input)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", input)
	}
	return d, nil
}
