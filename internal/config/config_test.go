package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, "wfwx", cfg.DBName)
	assert.Equal(t, "wfwx", cfg.DBSchema)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, 4, cfg.DBMaxOpenConns)
	assert.Equal(t, 2, cfg.DBMaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
	assert.True(t, cfg.RunMigrations)

	assert.Equal(t, DefaultDatamartBaseURL, cfg.DatamartBaseURL)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchMaxRetries)

	assert.False(t, cfg.BackfillEnabled)
	assert.Equal(t, 1987, cfg.BackfillStartYear)
	assert.Equal(t, 10, cfg.MissThreshold)
	assert.True(t, cfg.DailyFloor.IsZero())
	assert.Equal(t, "America/Vancouver", cfg.FeedLocation.String())
	assert.Equal(t, ConflictOverwrite, cfg.ReadingConflictPolicy)

	assert.Empty(t, cfg.RefreshCron)
	assert.Equal(t, 5, cfg.RefreshDays)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "wfwx-readings", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/wfwx.db")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("DATAMART_BASE_URL", "http://mirror.local/datamart/")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_MAX_RETRIES", "0")
	t.Setenv("BACKFILL_ENABLED", "true")
	t.Setenv("BACKFILL_START_YEAR", "1990")
	t.Setenv("MISS_THRESHOLD", "3")
	t.Setenv("DAILY_FLOOR", "2024-04-01")
	t.Setenv("FEED_TIMEZONE", "UTC")
	t.Setenv("READING_CONFLICT_POLICY", "IGNORE")
	t.Setenv("REFRESH_CRON", "50 * * * *")
	t.Setenv("REFRESH_DAYS", "2")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "readings")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "/tmp/wfwx.db", cfg.SQLitePath)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "http://mirror.local/datamart", cfg.DatamartBaseURL)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.FetchMaxRetries)
	assert.True(t, cfg.BackfillEnabled)
	assert.Equal(t, 1990, cfg.BackfillStartYear)
	assert.Equal(t, 3, cfg.MissThreshold)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), cfg.DailyFloor)
	assert.Equal(t, time.UTC, cfg.FeedLocation)
	assert.Equal(t, ConflictIgnore, cfg.ReadingConflictPolicy)
	assert.Equal(t, "50 * * * *", cfg.RefreshCron)
	assert.Equal(t, 2, cfg.RefreshDays)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "readings", cfg.KafkaTopic)
}

func TestLoad_EmptyHTTPAddrDisablesServer(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.HTTPAddr)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"DB_DRIVER", "mysql"},
		{"DB_PORT", "abc"},
		{"DB_MAX_OPEN_CONNS", "0"},
		{"DB_CONN_MAX_LIFETIME", "-1s"},
		{"RUN_MIGRATIONS", "maybe"},
		{"FETCH_TIMEOUT", "soon"},
		{"FETCH_MAX_RETRIES", "-1"},
		{"BACKFILL_START_YEAR", "0"},
		{"MISS_THRESHOLD", "ten"},
		{"DAILY_FLOOR", "04/01/2024"},
		{"FEED_TIMEZONE", "Mars/Olympus"},
		{"READING_CONFLICT_POLICY", "merge"},
		{"REFRESH_DAYS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
