package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN         string `env:"DATABASE_DSN,required=true"`
	FeedURL             string `env:"FEED_URL,required=true"`
	FeedQueue           string `env:"FEED_QUEUE,default=delivery.events"`
	RedisURL            string `env:"REDIS_URL"`
	PushRegistryURL     string `env:"PUSH_REGISTRY_URL,required=true"`
	DisplayURL          string `env:"DISPLAY_URL,required=true"`
	UserID              string `env:"USER_ID,default=default"`
	SnapshotIntervalSec int    `env:"SNAPSHOT_INTERVAL_SEC,default=30"`
	RateLimitWindowSec  int    `env:"RATE_LIMIT_WINDOW_SEC,default=30"`
	LedgerRetentionDays int    `env:"LEDGER_RETENTION_DAYS,default=90"`
	DeliveryRatePerSec  int    `env:"DELIVERY_RATE_PER_SEC,default=10"`
	HighValueThreshold  int    `env:"HIGH_VALUE_THRESHOLD,default=10000"`
	AdminPort           int    `env:"ADMIN_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalSec) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSec) * time.Second
}

func (c *Config) LedgerRetention() time.Duration {
	return time.Duration(c.LedgerRetentionDays) * 24 * time.Hour
}
