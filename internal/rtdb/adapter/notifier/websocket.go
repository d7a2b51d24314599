package notifier

import (
	"context"
	"sync"
	"time"

	"rtdb-bridge/internal/rtdb/domain/model"
	"rtdb-bridge/internal/rtdb/domain/repository"
	"rtdb-bridge/internal/shared/logger"

	"github.com/fasthttp/websocket"
	"go.uber.org/zap"
)

const (
	minReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
	pongWait          = 60 * time.Second
)

// WebSocket triggers watches from the document store's change feed. The
// connection is re-established with backoff; after a reconnect every watch is
// triggered once since changes may have been missed.
type WebSocket struct {
	url     string
	dialer  *websocket.Dialer
	watches *watchSet
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

var _ repository.ChangeNotifier = (*WebSocket)(nil)

// NewWebSocket dials url once and keeps the feed connected in the background.
// A failed first dial is returned so misconfiguration surfaces early.
func NewWebSocket(ctx context.Context, url string, log logger.Logger) (*WebSocket, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	n := &WebSocket{
		url:     url,
		dialer:  dialer,
		watches: newWatchSet(),
		logger:  logger.OrNop(log).WithComponent("ws_notifier"),
		ctx:     runCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		conn:    conn,
	}
	go n.run(conn)
	return n, nil
}

func (n *WebSocket) Watch(path model.Path, trigger func()) (func(), error) {
	return n.watches.add(path, trigger)
}

func (n *WebSocket) run(conn *websocket.Conn) {
	defer close(n.done)
	delay := minReconnectDelay
	for {
		n.read(conn)
		if n.ctx.Err() != nil {
			return
		}

		for {
			n.logger.Warn("Change feed disconnected, reconnecting",
				zap.String("url", n.url),
				zap.Duration("delay", delay))
			select {
			case <-n.ctx.Done():
				return
			case <-time.After(delay):
			}

			next, _, err := n.dialer.DialContext(n.ctx, n.url, nil)
			if err == nil {
				conn = next
				break
			}
			if n.ctx.Err() != nil {
				return
			}
			n.logger.Debug("Reconnect failed", zap.Error(err))
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
		}

		if !n.setConn(conn) {
			conn.Close()
			return
		}
		delay = minReconnectDelay
		n.logger.Info("Change feed reconnected", zap.String("url", n.url))
		n.watches.notifyAll()
	}
}

// read consumes change messages until the connection fails.
func (n *WebSocket) read(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if n.ctx.Err() == nil {
				n.logger.Debug("Change feed read failed", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		path, ok := changePath(msg)
		if !ok {
			n.logger.Warn("Ignoring malformed change message", zap.ByteString("payload", msg))
			continue
		}
		n.watches.notify(path)
	}
}

func (n *WebSocket) setConn(conn *websocket.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ctx.Err() != nil {
		return false
	}
	n.conn = conn
	return true
}

// Close stops reconnecting and closes the current connection.
func (n *WebSocket) Close() error {
	n.cancel()
	n.watches.close()
	n.mu.Lock()
	conn := n.conn
	n.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	<-n.done
	return nil
}
