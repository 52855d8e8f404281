// Package events broadcasts exchange lifecycle events to WebSocket
// subscribers. The feed is one-way; subscribers only listen.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write an event to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client event backlog. A client that cannot
	// keep up is dropped rather than stalling the hub.
	sendBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Event is one pipeline stage transition of an exchange.
type Event struct {
	ExchangeID string    `json:"exchange_id"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Hub maintains the set of subscribers and fans events out to them.
type Hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan Event

	mu     sync.RWMutex
	logger *zap.Logger
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// NewHub creates the event hub. Run must be started for events to flow.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		logger:     logger,
	}
}

// Run owns the client set until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*client)
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			h.mu.Unlock()
			h.logger.Debug("event subscriber connected", zap.String("client", c.id))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Debug("event subscriber disconnected", zap.String("client", c.id))

		case event := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- event:
				default:
					// Slow subscriber; skip this event for it.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish enqueues the event without blocking the caller. Events are
// best-effort; a full hub queue drops the event.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("event queue full, dropping event",
			zap.String("exchange_id", event.ExchangeID),
			zap.String("stage", event.Stage))
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and streams events until the peer leaves.
func (h *Hub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan Event, sendBuffer),
	}
	h.register <- cl

	go cl.writePump(h)
	go cl.readPump(h)
	return nil
}

func (c *client) writePump(h *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; it exists to notice the peer closing.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
