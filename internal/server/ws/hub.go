// Package ws pushes round-state snapshots to WebSocket clients on every
// phase transition.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okozhin/icewheel/internal/wheel"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize caps incoming frames; clients have nothing to say.
	maxMessageSize = 512

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 16

	// transitionSlack delays the post-boundary snapshot slightly so every
	// subscriber computes the same side of the boundary.
	transitionSlack = 25 * time.Millisecond
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP layer.
		return true
	},
}

// Snapshot builds the payload pushed to clients: the current round state
// plus whatever the server surface adds (history).
type Snapshot func(ctx context.Context) (any, error)

// client represents a single WebSocket connection.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients, watches the round clock, and broadcasts a
// fresh snapshot at every phase boundary.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	clock      *wheel.Clock
	snapshot   Snapshot
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewHub creates a Hub driven by the given clock and snapshot builder.
func NewHub(clock *wheel.Clock, snapshot Snapshot, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		clock:      clock,
		snapshot:   snapshot,
		logger:     logger.With(slog.String("component", "ws")),
	}
}

// Run drives the hub until ctx is cancelled: registration bookkeeping plus
// a snapshot broadcast at each phase boundary. Call it in a goroutine.
func (h *Hub) Run(ctx context.Context) error {
	timer := time.NewTimer(h.untilNextBoundary(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			h.logger.Info("client connected",
				slog.Int("total_clients", h.clientCount()),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected",
				slog.Int("total_clients", h.clientCount()),
			)

		case <-timer.C:
			h.broadcastSnapshot(ctx)
			timer.Reset(h.untilNextBoundary(time.Now()))
		}
	}
}

// untilNextBoundary returns how long until the next phase transition: the
// active-phase end of the current round, or the start of the next one.
func (h *Hub) untilNextBoundary(now time.Time) time.Duration {
	roundID := h.clock.RoundID(now)
	next := h.clock.ActiveEnd(roundID)
	if !now.Before(next) {
		next = h.clock.RoundStart(roundID + 1)
	}
	d := next.Sub(now) + transitionSlack
	if d < transitionSlack {
		d = transitionSlack
	}
	return d
}

// broadcastSnapshot builds one payload and fans it out; a slow client loses
// the message rather than stalling the round.
func (h *Hub) broadcastSnapshot(ctx context.Context) {
	payload, err := h.snapshot(ctx)
	if err != nil {
		h.logger.Error("snapshot failed", slog.String("error", err.Error()))
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    "round_state",
		"payload": payload,
	})
	if err != nil {
		h.logger.Error("marshal snapshot", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("dropping message for slow client")
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.register <- c
	c.sendInitialState(r.Context())

	go c.writePump()
	go c.readPump()
}

// clientCount returns the number of currently connected clients.
func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// sendInitialState pushes the current snapshot so a fresh client renders
// without waiting for the next boundary.
func (c *client) sendInitialState(ctx context.Context) {
	payload, err := c.hub.snapshot(ctx)
	if err != nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"type":    "round_state",
		"payload": payload,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// readPump drains the connection for control frames and detects closes.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close error",
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps snapshots to the connection and keeps it alive with
// periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
