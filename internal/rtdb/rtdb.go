package rtdb

import (
	"context"
	"fmt"

	"rtdb-bridge/internal/rtdb/adapter/notifier"
	"rtdb-bridge/internal/rtdb/adapter/rest"
	"rtdb-bridge/internal/rtdb/config"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/rtdb/usecase"
	"rtdb-bridge/internal/shared/logger"
	"rtdb-bridge/internal/shared/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client is a configured adapter: the HTTP gateway, the change notifier and the
// database built on them.
type Client struct {
	*usecase.Database

	Config   *config.AdapterConfig
	Gateway  *rest.HTTPGateway
	Notifier repository.ChangeNotifier
	Metrics  *metrics.Metrics
	Logger   logger.Logger
}

// Open builds a client from cfg. reg may be nil to skip metrics.
func Open(ctx context.Context, cfg *config.AdapterConfig, log logger.Logger, reg prometheus.Registerer) (*Client, error) {
	log = logger.OrNop(log)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gateway, err := rest.NewHTTPGateway(rest.Config{
		BaseURL:   cfg.BaseURL,
		APIPrefix: cfg.APIPrefix,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	n, err := NewNotifier(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	db := usecase.NewDatabase(gateway, n, usecase.Options{
		IDField: cfg.IDField,
		Logger:  log,
		Metrics: m,
	})
	log.Info("Adapter ready",
		zap.String("base_url", cfg.BaseURL),
		zap.String("notifier", cfg.Notifier))

	return &Client{
		Database: db,
		Config:   cfg,
		Gateway:  gateway,
		Notifier: n,
		Metrics:  m,
		Logger:   log,
	}, nil
}

// NewNotifier builds the change notifier named by cfg.Notifier.
func NewNotifier(ctx context.Context, cfg *config.AdapterConfig, log logger.Logger) (repository.ChangeNotifier, error) {
	switch cfg.Notifier {
	case config.NotifierRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		n, err := notifier.NewRedis(ctx, client, cfg.RedisChannel, log)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start redis notifier: %w", err)
		}
		return n, nil
	case config.NotifierWebSocket:
		feed, err := cfg.ChangeFeedURL()
		if err != nil {
			return nil, err
		}
		n, err := notifier.NewWebSocket(ctx, feed, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to change feed %s: %w", feed, err)
		}
		return n, nil
	default:
		return notifier.NewPolling(cfg.PollInterval), nil
	}
}

// Close disposes every listener and releases the notifier.
func (c *Client) Close() error {
	c.Dispose()
	return c.Notifier.Close()
}
