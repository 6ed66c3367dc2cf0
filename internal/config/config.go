// Package config reads process configuration from the environment.
// A .env file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"demand-ledger/internal/core"
	"demand-ledger/internal/replication"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	Store          string `envconfig:"STORE"`
	ServerPort     string `envconfig:"SERVER_PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"json"`

	BusinessTimezone string        `envconfig:"BUSINESS_TIMEZONE" default:"Asia/Kolkata"`
	ClockSource      string        `envconfig:"CLOCK_SOURCE" default:"device"`
	ServerTimeOffset time.Duration `envconfig:"SERVER_TIME_OFFSET" default:"0s"`

	SyncEnabled     bool          `envconfig:"SYNC_ENABLED" default:"true"`
	SyncInterval    time.Duration `envconfig:"SYNC_INTERVAL" default:"30s"`
	SyncBatchSize   int           `envconfig:"SYNC_BATCH_SIZE" default:"20"`
	SyncLease       time.Duration `envconfig:"SYNC_LEASE" default:"1m"`
	SyncMaxAttempts int           `envconfig:"SYNC_MAX_ATTEMPTS" default:"8"`
	SyncBackoffBase time.Duration `envconfig:"SYNC_BACKOFF_BASE" default:"5s"`
	SyncBackoffMax  time.Duration `envconfig:"SYNC_BACKOFF_MAX" default:"30m"`

	GCSBucket          string `envconfig:"GCS_BUCKET"`
	GCSPrefix          string `envconfig:"GCS_PREFIX" default:"demand-ledger"`
	GCSCredentialsJSON string `envconfig:"GCS_CREDENTIALS_JSON"`

	PubSubProjectID       string `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubTopic           string `envconfig:"PUBSUB_TOPIC"`
	PubSubCredentialsJSON string `envconfig:"PUBSUB_CREDENTIALS_JSON"`
	PubSubCreateTopic     bool   `envconfig:"PUBSUB_CREATE_TOPIC" default:"false"`

	VelocityFastQty    decimal.Decimal `envconfig:"VELOCITY_FAST_QTY" default:"10"`
	VelocitySlowQty    decimal.Decimal `envconfig:"VELOCITY_SLOW_QTY" default:"1"`
	VelocityWindowDays int             `envconfig:"VELOCITY_WINDOW_DAYS" default:"30"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads .env (if any) and the environment, then validates.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	switch c.Store {
	case "":
		if c.DatabaseURL == "" {
			c.Store = "memory"
		} else {
			c.Store = "postgres"
		}
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("STORE must be memory or postgres, got %q", c.Store)
	}

	switch c.ClockSource {
	case "device", "server":
	default:
		return fmt.Errorf("CLOCK_SOURCE must be device or server, got %q", c.ClockSource)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if _, err := time.LoadLocation(c.BusinessTimezone); err != nil {
		return fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.BusinessTimezone, err)
	}
	if c.VelocityWindowDays <= 0 {
		return fmt.Errorf("VELOCITY_WINDOW_DAYS must be positive")
	}
	if c.VelocitySlowQty.IsNegative() || c.VelocityFastQty.LessThan(c.VelocitySlowQty) {
		return fmt.Errorf("velocity thresholds must satisfy 0 <= slow <= fast")
	}
	if (c.PubSubProjectID == "") != (c.PubSubTopic == "") {
		return fmt.Errorf("PUBSUB_PROJECT_ID and PUBSUB_TOPIC must be set together")
	}
	return nil
}

func (c *Config) UseMemoryStore() bool { return c.Store == "memory" }

// Clock builds the business clock. With CLOCK_SOURCE=server the last known
// server offset is applied to device time.
func (c *Config) Clock() (*core.BusinessClock, error) {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return nil, err
	}
	clock := core.NewBusinessClock(loc)
	if c.ClockSource == "server" {
		clock.SetServerOffset(c.ServerTimeOffset)
	}
	return clock, nil
}

func (c *Config) Thresholds() core.VelocityThresholds {
	return core.VelocityThresholds{FastQty: c.VelocityFastQty, SlowQty: c.VelocitySlowQty}
}

func (c *Config) Worker() replication.WorkerConfig {
	return replication.WorkerConfig{
		Interval:    c.SyncInterval,
		BatchSize:   c.SyncBatchSize,
		Lease:       c.SyncLease,
		MaxAttempts: c.SyncMaxAttempts,
		BackoffBase: c.SyncBackoffBase,
		BackoffMax:  c.SyncBackoffMax,
	}
}
