package notifier

import (
	"context"
	"fmt"
	"sync"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisChannel matches the channel the document store publishes on.
const DefaultRedisChannel = "rtdb:changes"

// Redis triggers watches from change messages published on a Redis channel.
// One subscription serves every watch.
type Redis struct {
	client  *redis.Client
	pubsub  *redis.PubSub
	channel string
	watches *watchSet
	logger  logger.Logger

	closeOnce sync.Once
	done      chan struct{}
}

var _ repository.ChangeNotifier = (*Redis)(nil)

// NewRedis subscribes to channel and starts dispatching. It fails when the
// subscription cannot be confirmed.
func NewRedis(ctx context.Context, client *redis.Client, channel string, log logger.Logger) (*Redis, error) {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	n := &Redis{
		client:  client,
		pubsub:  pubsub,
		channel: channel,
		watches: newWatchSet(),
		logger:  logger.OrNop(log).WithComponent("redis_notifier"),
		done:    make(chan struct{}),
	}
	go n.dispatch(pubsub.Channel())
	return n, nil
}

func (n *Redis) Watch(path model.Path, trigger func()) (func(), error) {
	return n.watches.add(path, trigger)
}

func (n *Redis) dispatch(messages <-chan *redis.Message) {
	defer close(n.done)
	for msg := range messages {
		path, ok := changePath([]byte(msg.Payload))
		if !ok {
			n.logger.Warn("Ignoring malformed change message",
				zap.String("channel", msg.Channel),
				zap.String("payload", msg.Payload))
			continue
		}
		triggered := n.watches.notify(path)
		n.logger.Debug("Change received",
			zap.String("path", path.String()),
			zap.Int("triggered", triggered))
	}
}

// Close ends the subscription and the client.
func (n *Redis) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.watches.close()
		err = n.pubsub.Close()
		<-n.done
		if cerr := n.client.Close(); err == nil {
			err = cerr
		}
	})
	return err
}
