package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIURL              = "http://localhost:3000/api"
	defaultAPITimeout          = "10s"
	defaultListenAddr          = ":8080"
	defaultSessionDatabaseURL  = "sessions.db"
	defaultSessionSecret       = "change-me-session-secret"
	defaultSessionTTL          = "720h"
	defaultCookieSecure        = "false"
	defaultCookieSameSite      = "Lax"
	defaultCookiePath          = "/"
	defaultVerifyRedirectDelay = "5s"
	defaultVerifyRedirectPath  = "/profile"
	defaultCORSOrigins         = "http://localhost:5173"
	defaultLogLevel            = "info"
	defaultAuthRatePerMinute   = "20"
)

type Config struct {
	AppEnv              string
	APIURL              string
	APITimeout          time.Duration
	ListenAddr          string
	SessionDatabaseURL  string
	SessionSecret       string
	SessionTTL          time.Duration
	CookieSecure        bool
	CookieSameSite      string
	CookiePath          string
	VerifyRedirectDelay time.Duration
	VerifyRedirectPath  string
	CORSOrigins         []string
	LogLevel            string
	AuthRatePerMinute   int
}

func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(getEnv("API_URL", defaultAPIURL)), "/")
	cfg.ListenAddr = strings.TrimSpace(getEnv("LISTEN_ADDR", defaultListenAddr))
	cfg.SessionDatabaseURL = strings.TrimSpace(getEnv("SESSION_DATABASE_URL", defaultSessionDatabaseURL))
	cfg.SessionSecret = strings.TrimSpace(getEnv("SESSION_SECRET", defaultSessionSecret))
	cfg.VerifyRedirectPath = strings.TrimSpace(getEnv("VERIFY_REDIRECT_PATH", defaultVerifyRedirectPath))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", defaultLogLevel)))

	var err error
	cfg.APITimeout, err = parseDurationEnv("API_TIMEOUT", defaultAPITimeout)
	if err != nil {
		return nil, err
	}

	cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", defaultSessionTTL)
	if err != nil {
		return nil, err
	}

	cfg.VerifyRedirectDelay, err = parseDurationEnv("VERIFY_REDIRECT_DELAY", defaultVerifyRedirectDelay)
	if err != nil {
		return nil, err
	}

	cfg.AuthRatePerMinute, err = parseIntEnv("AUTH_RATE_PER_MINUTE", defaultAuthRatePerMinute)
	if err != nil {
		return nil, err
	}

	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.CookieSameSite = strings.TrimSpace(getEnv("COOKIE_SAMESITE", defaultCookieSameSite))
	cfg.CookiePath = strings.TrimSpace(getEnv("COOKIE_PATH", defaultCookiePath))

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", defaultCORSOrigins), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SameSite converts the configured cookie mode for net/http.
func (c *Config) SameSite() http.SameSite {
	switch strings.ToLower(c.CookieSameSite) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c *Config) IsProdLike() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.APIURL == "" {
		return fmt.Errorf("API_URL must not be empty")
	}
	if !strings.HasPrefix(cfg.APIURL, "http://") && !strings.HasPrefix(cfg.APIURL, "https://") {
		return fmt.Errorf("API_URL must start with http:// or https://")
	}
	if cfg.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be > 0")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if cfg.VerifyRedirectDelay <= 0 {
		return fmt.Errorf("VERIFY_REDIRECT_DELAY must be > 0")
	}
	if cfg.AuthRatePerMinute <= 0 {
		return fmt.Errorf("AUTH_RATE_PER_MINUTE must be > 0")
	}
	if cfg.SessionDatabaseURL == "" {
		return fmt.Errorf("SESSION_DATABASE_URL must not be empty")
	}
	if cfg.CookiePath == "" {
		return fmt.Errorf("COOKIE_PATH must not be empty")
	}
	if cfg.CookieSameSite == "" {
		return fmt.Errorf("COOKIE_SAMESITE must not be empty")
	}
	sameSite := strings.ToLower(strings.TrimSpace(cfg.CookieSameSite))
	if sameSite != "lax" && sameSite != "none" && sameSite != "strict" {
		return fmt.Errorf("COOKIE_SAMESITE must be one of: Lax, None, Strict")
	}
	if sameSite == "none" && !cfg.CookieSecure {
		return fmt.Errorf("COOKIE_SECURE must be true when COOKIE_SAMESITE=None")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.SessionSecret, defaultSessionSecret) {
			return fmt.Errorf("in prod/release SESSION_SECRET must be set and not default")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
