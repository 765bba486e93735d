package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingAuthSecret = errors.New("missing required env: AUTH_SECRET")

type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL            string
	DBMaxOpenConns         int
	DBMaxIdleConns         int
	DBConnMaxLifetime      time.Duration
	DBConnMaxIdleTime      time.Duration
	RunMigrationsOnStartup bool

	AuthSecret           string
	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration
	ClientIPHeader       string

	AdminUsername string
	AdminPassword string

	SentryDSN  string
	CronSecret string
}

// Load reads configuration from the environment. When loadDotEnv is set a local .env file
// is merged first; variables already present in the environment win.
func Load(loadDotEnv bool) (Config, error) {
	if loadDotEnv {
		_ = godotenv.Load()
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	authSecret := os.Getenv("AUTH_SECRET")
	if strings.TrimSpace(authSecret) == "" {
		return Config{}, ErrMissingAuthSecret
	}

	return Config{
		AppEnv:   strings.ToLower(envOrDefault("APP_ENV", "development")),
		Port:     envOrDefault("PORT", "8080"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),

		DatabaseURL:            databaseURL,
		DBMaxOpenConns:         envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:         envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:      envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime:      envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		RunMigrationsOnStartup: envBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),

		AuthSecret:           authSecret,
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 5),
		LoginRateLimitWindow: envMinutesOrDefault("LOGIN_RATE_LIMIT_WINDOW_MINUTES", 15),
		ClientIPHeader:       envOrDefault("CLIENT_IP_HEADER", "CF-Connecting-IP"),

		AdminUsername: strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		SentryDSN:  strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		CronSecret: strings.TrimSpace(os.Getenv("CRON_SECRET")),
	}, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%s", c.Port)
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
