package notifier

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"rtdb-bridge/internal/docstore"
	"rtdb-bridge/internal/docstore/adapter/persistence/memory"
	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter() (*int32, func()) {
	var n int32
	return &n, func() { atomic.AddInt32(&n, 1) }
}

func TestPolling_TriggersUntilStopped(t *testing.T) {
	p := NewPolling(10 * time.Millisecond)
	defer p.Close()

	n, trigger := counter()
	stop, err := p.Watch(model.ParsePath("users/1"), trigger)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Active())

	require.Eventually(t, func() bool { return atomic.LoadInt32(n) >= 3 }, time.Second, 5*time.Millisecond)

	stop()
	stop()
	assert.Equal(t, 0, p.Active())
	after := atomic.LoadInt32(n)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(n))
}

func TestPolling_DefaultIntervalAndClose(t *testing.T) {
	p := NewPolling(0)
	assert.Equal(t, DefaultPollInterval, p.Interval())

	_, err := p.Watch(model.ParsePath("a"), func() {})
	require.NoError(t, err)
	_, err = p.Watch(model.ParsePath("b"), func() {})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Active())

	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Active())

	_, err = p.Watch(model.ParsePath("a"), func() {})
	assert.ErrorIs(t, err, errors.ErrNotifierClosed)
}

func TestWatchSet_NotifiesRelatedPaths(t *testing.T) {
	s := newWatchSet()
	collection, onCollection := counter()
	doc, onDoc := counter()
	nested, onNested := counter()
	other, onOther := counter()

	for path, trigger := range map[string]func(){
		"users":            onCollection,
		"users/42":         onDoc,
		"users/42/profile": onNested,
		"posts/1":          onOther,
	} {
		_, err := s.add(model.ParsePath(path), trigger)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, s.notify(model.ParsePath("users/42")))
	assert.Equal(t, int32(1), atomic.LoadInt32(collection))
	assert.Equal(t, int32(1), atomic.LoadInt32(doc))
	assert.Equal(t, int32(1), atomic.LoadInt32(nested))
	assert.Equal(t, int32(0), atomic.LoadInt32(other))

	assert.Equal(t, 1, s.notify(model.ParsePath("users/7")))

	s.notifyAll()
	assert.Equal(t, int32(1), atomic.LoadInt32(other))
}

func TestWatchSet_StopAndClose(t *testing.T) {
	s := newWatchSet()
	n, trigger := counter()
	stop, err := s.add(model.ParsePath("users"), trigger)
	require.NoError(t, err)

	stop()
	stop()
	assert.Equal(t, 0, s.notify(model.ParsePath("users/1")))
	assert.Equal(t, int32(0), atomic.LoadInt32(n))

	s.close()
	_, err = s.add(model.ParsePath("users"), trigger)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestChangePath(t *testing.T) {
	path, ok := changePath([]byte(`{"type":"put","path":"users/42","timestamp":"2024-01-01T00:00:00Z"}`))
	require.True(t, ok)
	assert.Equal(t, "users/42", path.String())

	for _, payload := range []string{``, `not json`, `{"type":"put"}`, `{"path":7}`, `{"path":""}`} {
		_, ok := changePath([]byte(payload))
		assert.False(t, ok, payload)
	}
}

func TestWebSocket_TriggersFromChangeFeed(t *testing.T) {
	module := docstore.NewModuleWithStore(nil, memory.NewStore(), nil)
	defer module.Close(context.Background())
	app := module.NewApp()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	defer app.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, err := NewWebSocket(ctx, "ws://"+ln.Addr().String()+"/ws/changes", nil)
	require.NoError(t, err)
	defer ws.Close()

	related, onRelated := counter()
	unrelated, onUnrelated := counter()
	_, err = ws.Watch(model.ParsePath("users/42/name"), onRelated)
	require.NoError(t, err)
	_, err = ws.Watch(model.ParsePath("posts"), onUnrelated)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return module.Feed.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	doc := jsonvalue.MustFromInterface(map[string]interface{}{"name": "Ann"})
	_, err = module.Service.Put(ctx, "users", "42", doc)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return atomic.LoadInt32(related) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(unrelated))

	require.NoError(t, ws.Close())
	_, err = ws.Watch(model.ParsePath("users"), func() {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewWebSocket_FailsWithoutServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = NewWebSocket(ctx, "ws://"+addr+"/ws/changes", nil)
	assert.Error(t, err)
}

func TestRedis_TriggersFromPublishedChanges(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}

	n, err := NewRedis(ctx, client, "rtdb:changes:notifier-test", nil)
	require.NoError(t, err)
	defer n.Close()

	hits, trigger := counter()
	_, err = n.Watch(model.ParsePath("users"), trigger)
	require.NoError(t, err)

	publisher := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	defer publisher.Close()
	require.NoError(t, publisher.Publish(ctx, "rtdb:changes:notifier-test", `{"type":"put","path":"users/1"}`).Err())
	require.NoError(t, publisher.Publish(ctx, "rtdb:changes:notifier-test", `{"type":"put","path":"posts/1"}`).Err())
	require.NoError(t, publisher.Publish(ctx, "rtdb:changes:notifier-test", `garbage`).Err())

	require.Eventually(t, func() bool { return atomic.LoadInt32(hits) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	require.NoError(t, n.Close())
}
