package config_test

import (
	"testing"
	"time"

	"demand-ledger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE", "")

	c, err := config.FromEnv()
	require.NoError(t, err)
	assert.True(t, c.UseMemoryStore())
	assert.Equal(t, "8080", c.ServerPort)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
	assert.Equal(t, 30, c.VelocityWindowDays)
	assert.Equal(t, "10", c.Thresholds().FastQty.String())

	w := c.Worker()
	assert.Equal(t, 8, w.MaxAttempts)
	assert.Equal(t, 30*time.Minute, w.BackoffMax)
}

func TestFromEnvPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost:5432/ledger")
	t.Setenv("STORE", "")
	t.Setenv("SYNC_BACKOFF_BASE", "2s")
	t.Setenv("VELOCITY_FAST_QTY", "25.5")

	c, err := config.FromEnv()
	require.NoError(t, err)
	assert.False(t, c.UseMemoryStore())
	assert.Equal(t, "postgres", c.Store)
	assert.Equal(t, 2*time.Second, c.Worker().BackoffBase)
	assert.Equal(t, "25.5", c.VelocityFastQty.String())
}

func TestServerClockAppliesOffset(t *testing.T) {
	t.Setenv("BUSINESS_TIMEZONE", "Asia/Kolkata")
	t.Setenv("CLOCK_SOURCE", "server")
	t.Setenv("SERVER_TIME_OFFSET", "1h")

	c, err := config.FromEnv()
	require.NoError(t, err)
	clock, err := c.Clock()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", clock.Location().String())
	assert.WithinDuration(t, time.Now().Add(time.Hour), clock.Now(), 5*time.Second)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"Unknown store", "STORE", "sqlite"},
		{"Postgres without URL", "STORE", "postgres"},
		{"Unknown clock source", "CLOCK_SOURCE", "gps"},
		{"Unknown log format", "LOG_FORMAT", "xml"},
		{"Bad timezone", "BUSINESS_TIMEZONE", "Mars/Olympus"},
		{"Zero window", "VELOCITY_WINDOW_DAYS", "0"},
		{"Slow above fast", "VELOCITY_SLOW_QTY", "50"},
		{"Topic without project", "PUBSUB_TOPIC", "ledger-sync"},
		{"Unparseable duration", "SYNC_INTERVAL", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tt.key, tt.value)
			_, err := config.FromEnv()
			assert.Error(t, err)
		})
	}
}
