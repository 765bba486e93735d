package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/feedlog")
	t.Setenv("AUTH_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	for _, name := range []string{"APP_ENV", "PORT", "LOG_LEVEL", "LOGIN_RATE_LIMIT_MAX", "LOGIN_RATE_LIMIT_WINDOW_MINUTES", "CLIENT_IP_HEADER", "RUN_MIGRATIONS_ON_STARTUP", "CRON_SECRET"} {
		t.Setenv(name, "")
	}

	cfg, err := Load(false)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.LoginRateLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.LoginRateLimitWindow)
	assert.Equal(t, "CF-Connecting-IP", cfg.ClientIPHeader)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.Equal(t, 30*time.Minute, cfg.DBConnMaxLifetime)
	assert.False(t, cfg.RunMigrationsOnStartup)
	assert.Empty(t, cfg.CronSecret)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PORT", "9000")
	t.Setenv("LOGIN_RATE_LIMIT_MAX", "3")
	t.Setenv("LOGIN_RATE_LIMIT_WINDOW_MINUTES", "1")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("RUN_MIGRATIONS_ON_STARTUP", "yes")
	t.Setenv("ADMIN_USERNAME", "  admin ")

	cfg, err := Load(false)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 3, cfg.LoginRateLimitMax)
	assert.Equal(t, time.Minute, cfg.LoginRateLimitWindow)
	assert.Equal(t, 10, cfg.DBMaxOpenConns)
	assert.True(t, cfg.RunMigrationsOnStartup)
	assert.Equal(t, "admin", cfg.AdminUsername)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_SECRET", "test-secret")
	_, err := Load(false)
	assert.EqualError(t, err, "missing required env: DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/feedlog")
	t.Setenv("AUTH_SECRET", "   ")
	_, err = Load(false)
	assert.ErrorIs(t, err, ErrMissingAuthSecret)
}

func TestEnvBoolOrDefault(t *testing.T) {
	cases := map[string]bool{"1": true, "TRUE": true, "on": true, "0": false, "No": false, "off": false}
	for value, want := range cases {
		t.Setenv("FEEDLOG_TEST_BOOL", value)
		assert.Equal(t, want, envBoolOrDefault("FEEDLOG_TEST_BOOL", !want), value)
	}

	t.Setenv("FEEDLOG_TEST_BOOL", "maybe")
	assert.True(t, envBoolOrDefault("FEEDLOG_TEST_BOOL", true))
}
