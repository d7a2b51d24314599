package realtime

import (
	"context"
	"encoding/json"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/docstore/domain/repository"
	"rtdb-bridge/internal/shared/eventbus"
	"rtdb-bridge/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel changes are published on.
const DefaultChannel = "rtdb:changes"

// RedisPublisher publishes committed changes on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

var _ repository.ChangePublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client, channel string, log logger.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{
		client:  client,
		channel: channel,
		logger:  logger.OrNop(log).WithComponent("redis_publisher"),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, change model.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Error("Failed to publish change",
			zap.String("channel", p.channel),
			zap.String("path", change.Path),
			zap.Error(err))
		return err
	}
	p.logger.Debug("Change published",
		zap.String("channel", p.channel),
		zap.String("type", string(change.Type)),
		zap.String("path", change.Path))
	return nil
}

// Ping checks the server is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// Forward publishes every change event on bus through pub. The returned
// function stops forwarding.
func Forward(bus eventbus.Bus, pub repository.ChangePublisher) (stop func()) {
	var unsubs []func()
	for _, et := range eventbus.ChangeEventTypes {
		unsubs = append(unsubs, bus.Subscribe(et, func(ctx context.Context, event eventbus.Event) error {
			change, ok := event.Data().(model.Change)
			if !ok {
				return nil
			}
			return pub.Publish(ctx, change)
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
