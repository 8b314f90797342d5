package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, ":8090", cfg.Addr())
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, 2, cfg.DueSoonThresholdDays)
	assert.Equal(t, 24*time.Hour, cfg.ReminderInterval)
	assert.Equal(t, int32(5), cfg.MaxLoginFailures)
	assert.False(t, cfg.CookieSecure)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DUE_SOON_THRESHOLD_DAYS", "5")
	t.Setenv("REMINDER_INTERVAL", "1h30m")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("DB_MAX_CONNS", "50")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 5, cfg.DueSoonThresholdDays)
	assert.Equal(t, 90*time.Minute, cfg.ReminderInterval)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, int32(50), cfg.DBMaxConns)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "lots")
	t.Setenv("REMINDER_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, int32(25), cfg.DBMaxConns)
	assert.Equal(t, 24*time.Hour, cfg.ReminderInterval)
}
