package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                 int
	Env                  string
	DBDriver             string
	DBDSN                string
	JWTSecret            string
	RedisURL             string
	FrontendURL          string
	WSInsecureSkipVerify bool
	InternalAPIKey       string

	Reminder ReminderConfig
	SMTP     SMTPConfig
}

// ReminderConfig controls the appointment reminder scan.
type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
	Window   time.Duration
	Lead     time.Duration
	Cron     string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Configured reports whether enough is set to actually deliver mail.
func (s SMTPConfig) Configured() bool {
	return s.Host != "" && s.Port != 0 && s.User != "" && s.Password != ""
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() Config {
	_ = godotenv.Load()

	interval := time.Duration(getInt("REMINDER_INTERVAL_MINUTES", 15)) * time.Minute
	window := interval
	if v := getInt("REMINDER_WINDOW_MINUTES", 0); v > 0 {
		window = time.Duration(v) * time.Minute
	}

	smtpUser := os.Getenv("SMTP_USER")

	return Config{
		Port:                 getInt("APP_PORT", 8084),
		Env:                  getEnv("APP_ENV", "development"),
		DBDriver:             strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBDSN:                os.Getenv("DB_DSN"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		RedisURL:             os.Getenv("REDIS_URL"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		WSInsecureSkipVerify: os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true",
		InternalAPIKey:       os.Getenv("INTERNAL_API_KEY"),
		Reminder: ReminderConfig{
			Enabled:  getEnv("REMINDER_ENABLED", "true") == "true",
			Interval: interval,
			Window:   window,
			Lead:     time.Duration(getInt("REMINDER_LEAD_HOURS", 24)) * time.Hour,
			Cron:     strings.TrimSpace(os.Getenv("REMINDER_CRON")),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 0),
			User:     smtpUser,
			Password: os.Getenv("SMTP_PASS"),
			From:     getEnv("FROM_EMAIL", smtpUser),
		},
	}
}

// Validate returns an error listing every required value that is missing.
func (c Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of mysql, postgres, sqlite"))
	}
	if c.Reminder.Interval <= 0 {
		errs = append(errs, errors.New("REMINDER_INTERVAL_MINUTES must be positive"))
	}
	if c.Reminder.Cron != "" && !gronx.New().IsValid(c.Reminder.Cron) {
		errs = append(errs, errors.New("REMINDER_CRON is not a valid cron expression"))
	}
	return errors.Join(errs...)
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
