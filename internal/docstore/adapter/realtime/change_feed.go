package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rtdb-bridge/internal/docstore/domain/model"
	"rtdb-bridge/internal/shared/eventbus"
	"rtdb-bridge/internal/shared/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// sendBuffer is how many changes may queue for one slow client before
	// further changes to it are dropped.
	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
)

type feedClient struct {
	id   string
	send chan []byte
}

// ChangeFeed broadcasts committed document changes to WebSocket clients on
// /ws/changes. Clients only receive; anything they send is discarded.
type ChangeFeed struct {
	mu      sync.RWMutex
	clients map[string]*feedClient
	unsubs  []func()
	log     logger.Logger
}

// NewChangeFeed subscribes the feed to every change event on bus.
func NewChangeFeed(bus eventbus.Bus, log logger.Logger) *ChangeFeed {
	f := &ChangeFeed{
		clients: make(map[string]*feedClient),
		log:     logger.OrNop(log).WithComponent("change_feed"),
	}
	for _, et := range eventbus.ChangeEventTypes {
		f.unsubs = append(f.unsubs, bus.Subscribe(et, f.handleEvent))
	}
	return f
}

// RegisterRoutes mounts the WebSocket endpoint.
func (f *ChangeFeed) RegisterRoutes(router fiber.Router) {
	ws := router.Group("/ws")
	ws.Use("/changes", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	ws.Get("/changes", websocket.New(f.serve))
}

func (f *ChangeFeed) handleEvent(ctx context.Context, event eventbus.Event) error {
	change, ok := event.Data().(model.Change)
	if !ok {
		return nil
	}
	f.Broadcast(change)
	return nil
}

// Broadcast queues change for every connected client.
func (f *ChangeFeed) Broadcast(change model.Change) {
	msg, err := json.Marshal(change)
	if err != nil {
		f.log.Error("Failed to encode change", zap.Error(err))
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, c := range f.clients {
		select {
		case c.send <- msg:
		default:
			f.log.Warn("Dropping change for slow client",
				zap.String("clientID", c.id),
				zap.String("path", change.Path))
		}
	}
}

// Clients returns the number of connected clients.
func (f *ChangeFeed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *ChangeFeed) serve(conn *websocket.Conn) {
	client := &feedClient{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	f.mu.Lock()
	f.clients[client.id] = client
	f.mu.Unlock()
	f.log.Info("Change feed client connected", zap.String("clientID", client.id))

	defer func() {
		f.mu.Lock()
		delete(f.clients, client.id)
		f.mu.Unlock()
		f.log.Info("Change feed client disconnected", zap.String("clientID", client.id))
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					f.log.Warn("Change feed read failed", zap.String("clientID", client.id), zap.Error(err))
				}
				return
			}
		}
	}()

	ping := time.NewTicker(pongWait / 2)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case msg := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close detaches the feed from the bus. Connected clients are closed by the
// server shutdown.
func (f *ChangeFeed) Close() {
	for _, unsub := range f.unsubs {
		unsub()
	}
	f.unsubs = nil
}
