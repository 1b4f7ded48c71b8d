package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "file:test.db")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg := Load()

	assert.Equal(t, 8084, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.Reminder.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Reminder.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Reminder.Window)
	assert.Equal(t, 24*time.Hour, cfg.Reminder.Lead)
	assert.False(t, cfg.SMTP.Configured())
	require.NoError(t, cfg.Validate())
}

func TestLoadReminderOverrides(t *testing.T) {
	t.Setenv("REMINDER_INTERVAL_MINUTES", "5")
	t.Setenv("REMINDER_WINDOW_MINUTES", "20")
	t.Setenv("REMINDER_LEAD_HOURS", "2")
	t.Setenv("REMINDER_CRON", " */5 * * * * ")
	t.Setenv("SMTP_USER", "mailer@example.com")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.Reminder.Interval)
	assert.Equal(t, 20*time.Minute, cfg.Reminder.Window)
	assert.Equal(t, 2*time.Hour, cfg.Reminder.Lead)
	assert.Equal(t, "*/5 * * * *", cfg.Reminder.Cron)
	assert.Equal(t, "mailer@example.com", cfg.SMTP.From)
}

func TestValidateReportsMissing(t *testing.T) {
	err := Config{DBDriver: "oracle"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_DRIVER")
	assert.Contains(t, err.Error(), "REMINDER_INTERVAL_MINUTES")
}

func TestValidateRejectsBadCron(t *testing.T) {
	cfg := Config{
		DBDriver:  "sqlite",
		DBDSN:     "file:x.db",
		JWTSecret: "s",
		Reminder:  ReminderConfig{Interval: time.Minute, Cron: "every tuesday"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REMINDER_CRON")

	cfg.Reminder.Cron = "*/5 * * * *"
	assert.NoError(t, cfg.Validate())
}
