package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Change notifiers.
const (
	NotifierPolling   = "polling"
	NotifierRedis     = "redis"
	NotifierWebSocket = "websocket"
)

// AdapterConfig holds configuration for an adapter instance.
type AdapterConfig struct {
	BaseURL     string        `env:"RTDB_BASE_URL" envDefault:"http://localhost:3000"`
	APIPrefix   string        `env:"RTDB_API_PREFIX" envDefault:"/api"`
	IDField     string        `env:"RTDB_ID_FIELD" envDefault:"id"`
	HTTPTimeout time.Duration `env:"RTDB_HTTP_TIMEOUT" envDefault:"30s"`

	// RateLimit caps requests per second to the document store; zero disables it.
	RateLimit float64 `env:"RTDB_RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RTDB_RATE_BURST" envDefault:"10"`

	Notifier     string        `env:"RTDB_NOTIFIER" envDefault:"polling"`
	PollInterval time.Duration `env:"RTDB_POLL_INTERVAL" envDefault:"5s"`
	RedisAddr    string        `env:"RTDB_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisChannel string        `env:"RTDB_REDIS_CHANNEL" envDefault:"rtdb:changes"`
	// WebSocketURL defaults to the change feed next to BaseURL.
	WebSocketURL string `env:"RTDB_WS_URL"`
}

// LoadConfig loads the adapter configuration from environment variables.
func LoadConfig() (*AdapterConfig, error) {
	cfg := &AdapterConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load adapter configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultAdapterConfig returns a polling configuration against a local store.
func DefaultAdapterConfig() *AdapterConfig {
	return &AdapterConfig{
		BaseURL:      "http://localhost:3000",
		APIPrefix:    "/api",
		IDField:      "id",
		HTTPTimeout:  30 * time.Second,
		RateBurst:    10,
		Notifier:     NotifierPolling,
		PollInterval: 5 * time.Second,
		RedisAddr:    "localhost:6379",
		RedisChannel: "rtdb:changes",
	}
}

func (c *AdapterConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New("RTDB_BASE_URL is required")
	}
	if c.IDField == "" {
		return errors.New("RTDB_ID_FIELD must not be empty")
	}
	if c.RateLimit < 0 {
		return errors.New("RTDB_RATE_LIMIT must not be negative")
	}
	switch c.Notifier {
	case NotifierPolling:
		if c.PollInterval <= 0 {
			return errors.New("RTDB_POLL_INTERVAL must be positive")
		}
	case NotifierRedis:
		if c.RedisAddr == "" {
			return errors.New("RTDB_REDIS_ADDR is required for the redis notifier")
		}
	case NotifierWebSocket:
		if _, err := c.ChangeFeedURL(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported RTDB_NOTIFIER %q", c.Notifier)
	}
	return nil
}

// ChangeFeedURL returns WebSocketURL, or derives ws(s)://host/ws/changes from
// BaseURL.
func (c *AdapterConfig) ChangeFeedURL() (string, error) {
	if c.WebSocketURL != "" {
		return c.WebSocketURL, nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Host == "" {
		return "", fmt.Errorf("cannot derive change feed URL from %q", c.BaseURL)
	}
	scheme := "ws"
	if strings.EqualFold(base.Scheme, "https") {
		scheme = "wss"
	}
	return scheme + "://" + base.Host + "/ws/changes", nil
}
