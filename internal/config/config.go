// Package config loads process settings from the environment and handler
// sets from YAML files.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Feed sources.
const (
	FeedSourceWebsocket = "ws"
	FeedSourceRedis     = "redis"
)

// Config holds the process configuration.
type Config struct {
	// Storage
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickHouseDSN string `env:"CLICKHOUSE_DSN"`

	// Feed
	FeedSource    string `env:"FEED_SOURCE" envDefault:"ws"`
	FeedURL       string `env:"FEED_URL" envDefault:"ws://localhost:8765/stream"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	StreamKey     string `env:"STREAM_KEY" envDefault:"md:orderbook"`
	ConsumerGroup string `env:"CONSUMER_GROUP" envDefault:"feature-lab"`
	ConsumerName  string `env:"CONSUMER_NAME" envDefault:"feature-lab-1"`
	QueueSize     int    `env:"QUEUE_SIZE" envDefault:"4096"`

	// Reconnect backoff (parsed as milliseconds)
	ReconnectMinMs int `env:"RECONNECT_MIN_MS" envDefault:"500"`
	ReconnectMaxMs int `env:"RECONNECT_MAX_MS" envDefault:"30000"`

	// Computed durations (not from env)
	ReconnectMin time.Duration `env:"-"`
	ReconnectMax time.Duration `env:"-"`

	// Handlers
	HandlersFile string `env:"HANDLERS_FILE" envDefault:"handlers.yaml"`
	RunID        string `env:"RUN_ID"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	cfg.FeedSource = strings.ToLower(strings.TrimSpace(cfg.FeedSource))
	cfg.ReconnectMin = time.Duration(cfg.ReconnectMinMs) * time.Millisecond
	cfg.ReconnectMax = time.Duration(cfg.ReconnectMaxMs) * time.Millisecond

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.FeedSource {
	case FeedSourceWebsocket:
		if c.FeedURL == "" {
			return fmt.Errorf("FEED_URL is required for feed source %q", c.FeedSource)
		}
	case FeedSourceRedis:
		if c.RedisURL == "" || c.StreamKey == "" || c.ConsumerGroup == "" {
			return fmt.Errorf("REDIS_URL, STREAM_KEY and CONSUMER_GROUP are required for feed source %q", c.FeedSource)
		}
	default:
		return fmt.Errorf("invalid feed source: %q (must be %q or %q)", c.FeedSource, FeedSourceWebsocket, FeedSourceRedis)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("queue size must be at least 1")
	}

	if c.ReconnectMin <= 0 || c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("reconnect backoff must satisfy 0 < min <= max")
	}

	if c.HandlersFile == "" {
		return fmt.Errorf("HANDLERS_FILE cannot be empty")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}
