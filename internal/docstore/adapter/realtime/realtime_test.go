package realtime

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/shared/eventbus"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	changes []model.Change
}

func (p *recordingPublisher) Publish(ctx context.Context, change model.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.changes)
}

func TestForward_PublishesChangeEventsUntilStopped(t *testing.T) {
	bus := eventbus.NewEventBus(nil)
	pub := &recordingPublisher{}
	stop := Forward(bus, pub)

	ctx := context.Background()
	change := model.NewChange(model.ChangePut, "users", "1")
	require.NoError(t, bus.Publish(ctx, eventbus.NewBasicEvent(eventbus.EventTypeDocumentPut, change, "test")))
	require.NoError(t, bus.Publish(ctx, eventbus.NewBasicEvent(eventbus.EventTypeDocumentDeleted, change, "test")))
	require.NoError(t, bus.Publish(ctx, eventbus.NewBasicEvent("unrelated", change, "test")))
	assert.Equal(t, 2, pub.count())

	stop()
	require.NoError(t, bus.Publish(ctx, eventbus.NewBasicEvent(eventbus.EventTypeDocumentPut, change, "test")))
	assert.Equal(t, 2, pub.count())
	assert.Empty(t, bus.EventTypes())
}

func TestChangeFeed_RejectsPlainHTTP(t *testing.T) {
	bus := eventbus.NewEventBus(nil)
	feed := NewChangeFeed(bus, nil)
	defer feed.Close()

	app := fiber.New()
	feed.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/changes", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}

func TestChangeFeed_DeliversChangesToClients(t *testing.T) {
	bus := eventbus.NewEventBus(nil)
	feed := NewChangeFeed(bus, nil)
	defer feed.Close()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	feed.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()

	conn, _, err := fastws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/changes", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	change := model.NewChange(model.ChangePatch, "users", "42")
	require.NoError(t, bus.Publish(context.Background(),
		eventbus.NewBasicEvent(eventbus.EventTypeDocumentPatched, change, "test")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got model.Change
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, model.ChangePatch, got.Type)
	assert.Equal(t, "users/42", got.Path)

	conn.Close()
	require.Eventually(t, func() bool { return feed.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRedisPublisher_Publish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}

	sub := client.Subscribe(ctx, "rtdb:changes:test")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := NewRedisPublisher(client, "rtdb:changes:test", nil)
	defer pub.Close()
	require.NoError(t, pub.Publish(ctx, model.NewChange(model.ChangeDelete, "users", "7")))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var got model.Change
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "users/7", got.Path)
	assert.Equal(t, model.ChangeDelete, got.Type)
}
