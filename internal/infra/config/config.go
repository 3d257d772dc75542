package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	HTTPAddr        string
	TelegramToken   string // Empty disables the bot and reminder dispatch
	AdminTelegramID int64
	LogLevel        string
	Environment     string

	ReminderSendTime string // HH:MM, local to Timezone
	SendHour         int
	SendMinute       int
	Timezone         string
	Location         *time.Location
	Locale           string

	DispatchLookahead         time.Duration
	CronSpecDispatch          string
	CronSpecSettlementRetry   string
	SettlementRetryWindowDays int
	MigrateOnStart            bool

	// Connection pool; zero values fall back to the database package defaults.
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from a lookup function.
func FromEnv(getenv func(string) string) (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if cfg.DBMaxOpenConns, err = intFromEnv(getenv, "DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = intFromEnv(getenv, "DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = durationFromEnv(getenv, "DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxIdleTime, err = durationFromEnv(getenv, "DB_CONN_MAX_IDLE_TIME", time.Minute); err != nil {
		return nil, err
	}

	cfg.HTTPAddr = withDefault(getenv("HTTP_ADDR"), ":8080")

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		adminIDStr := getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(withDefault(getenv("LOG_LEVEL"), "info"))
	cfg.Environment = strings.ToLower(withDefault(getenv("ENVIRONMENT"), "development"))

	cfg.ReminderSendTime = withDefault(getenv("REMINDER_SEND_TIME"), "09:00")
	cfg.SendHour, cfg.SendMinute, err = ParseSendTime(cfg.ReminderSendTime)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_SEND_TIME: %w", err)
	}

	cfg.Timezone = withDefault(getenv("TIMEZONE"), "Local")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.Locale = strings.ToLower(withDefault(getenv("LOCALE"), "es"))

	lookahead, err := intFromEnv(getenv, "DISPATCH_LOOKAHEAD_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	cfg.DispatchLookahead = time.Duration(lookahead) * time.Minute

	cfg.CronSpecDispatch = withDefault(getenv("CRON_SPEC_DISPATCH"), "*/5 * * * *")
	cfg.CronSpecSettlementRetry = withDefault(getenv("CRON_SPEC_SETTLEMENT_RETRY"), "0 * * * *")

	cfg.SettlementRetryWindowDays, err = intFromEnv(getenv, "SETTLEMENT_RETRY_WINDOW_DAYS", 30)
	if err != nil {
		return nil, err
	}

	cfg.MigrateOnStart = true
	if v := getenv("MIGRATE_ON_START"); v != "" {
		cfg.MigrateOnStart, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
		}
	}

	return cfg, nil
}

// ParseSendTime parses an HH:MM wall-clock time.
func ParseSendTime(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

// durationFromEnv parses a Go duration such as "90s" or "5m".
func durationFromEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
