package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"DATABASE_URL": "postgres://localhost/billing"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.TelegramToken)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 9, cfg.SendHour)
	assert.Equal(t, 0, cfg.SendMinute)
	assert.Equal(t, "es", cfg.Locale)
	assert.Equal(t, 15*time.Minute, cfg.DispatchLookahead)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecDispatch)
	assert.Equal(t, 30, cfg.SettlementRetryWindowDays)
	assert.True(t, cfg.MigrateOnStart)
	assert.NotNil(t, cfg.Location)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 25, cfg.DBMaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, time.Minute, cfg.DBConnMaxIdleTime)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":               "postgres://localhost/billing",
		"TELEGRAM_TOKEN":             "token",
		"ADMIN_TELEGRAM_ID":          "12345",
		"LOG_LEVEL":                  "DEBUG",
		"ENVIRONMENT":                "Production",
		"REMINDER_SEND_TIME":         "08:30",
		"TIMEZONE":                   "UTC",
		"LOCALE":                     "EN",
		"DISPATCH_LOOKAHEAD_MINUTES": "60",
		"MIGRATE_ON_START":           "false",
		"DB_MAX_OPEN_CONNS":          "50",
		"DB_MAX_IDLE_CONNS":          "10",
		"DB_CONN_MAX_LIFETIME":       "30m",
		"DB_CONN_MAX_IDLE_TIME":      "90s",
	}))
	require.NoError(t, err)

	assert.Equal(t, int64(12345), cfg.AdminTelegramID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 8, cfg.SendHour)
	assert.Equal(t, 30, cfg.SendMinute)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, time.Hour, cfg.DispatchLookahead)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, 50, cfg.DBMaxOpenConns)
	assert.Equal(t, 10, cfg.DBMaxIdleConns)
	assert.Equal(t, 30*time.Minute, cfg.DBConnMaxLifetime)
	assert.Equal(t, 90*time.Second, cfg.DBConnMaxIdleTime)
}

func TestFromEnv_Errors(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"DATABASE_URL": "postgres://localhost/billing"}
	}
	tests := []struct {
		name string
		set  map[string]string
	}{
		{"token without admin", map[string]string{"TELEGRAM_TOKEN": "token"}},
		{"bad admin id", map[string]string{"TELEGRAM_TOKEN": "token", "ADMIN_TELEGRAM_ID": "me"}},
		{"bad send time", map[string]string{"REMINDER_SEND_TIME": "9am"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Nowhere/Special"}},
		{"negative lookahead", map[string]string{"DISPATCH_LOOKAHEAD_MINUTES": "-1"}},
		{"bad migrate flag", map[string]string{"MIGRATE_ON_START": "maybe"}},
		{"bad pool size", map[string]string{"DB_MAX_OPEN_CONNS": "many"}},
		{"bad conn lifetime", map[string]string{"DB_CONN_MAX_LIFETIME": "5 minutes"}},
		{"negative idle time", map[string]string{"DB_CONN_MAX_IDLE_TIME": "-1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			for k, v := range tt.set {
				m[k] = v
			}
			_, err := FromEnv(env(m))
			assert.Error(t, err)
		})
	}

	_, err := FromEnv(env(map[string]string{}))
	assert.EqualError(t, err, "DATABASE_URL is not set")
}

func TestParseSendTime(t *testing.T) {
	h, m, err := ParseSendTime(" 23:45 ")
	require.NoError(t, err)
	assert.Equal(t, 23, h)
	assert.Equal(t, 45, m)

	_, _, err = ParseSendTime("24:00")
	assert.Error(t, err)
}
