package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/effects/pkg/effect"
)

// clientBuffer is the number of events queued per client before new events
// are dropped for that client.
const clientBuffer = 256

// EventMessage is the JSON form of an effect.Event sent to clients.
type EventMessage struct {
	Kind       string  `json:"kind"`
	Time       string  `json:"time"`
	Commit     string  `json:"commit,omitempty"`
	Seq        uint64  `json:"seq,omitempty"`
	Instance   string  `json:"instance,omitempty"`
	Slot       int     `json:"slot"`
	Label      string  `json:"label,omitempty"`
	Phase      string  `json:"phase,omitempty"`
	Deps       string  `json:"deps,omitempty"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"durationMs,omitempty"`
}

// NewEventMessage converts a runtime event.
func NewEventMessage(e effect.Event) EventMessage {
	msg := EventMessage{
		Kind:     e.Kind.String(),
		Time:     e.Time.UTC().Format(time.RFC3339Nano),
		Commit:   e.Commit,
		Seq:      e.Seq,
		Instance: string(e.Instance),
		Slot:     e.Slot,
		Label:    e.Label,
		Deps:     e.Deps,
	}
	switch e.Kind {
	case effect.EventRun, effect.EventCleanup, effect.EventFailure:
		msg.Phase = e.Phase.String()
	}
	if e.Err != nil {
		msg.Error = e.Err.Error()
	}
	if e.Duration > 0 {
		msg.DurationMs = float64(e.Duration) / float64(time.Millisecond)
	}
	return msg
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub is an effect.Observer that fans runtime events out to WebSocket
// clients. Observe never blocks: a client whose queue is full misses events.
type Hub struct {
	clients  map[*client]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
	dropped  uint64
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local tooling
			},
		},
		logger: slog.Default().With("component", "devtools"),
	}
}

// Observe implements effect.Observer.
func (h *Hub) Observe(e effect.Event) {
	data, err := json.Marshal(NewEventMessage(e))
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped++
		}
	}
}

// HandleWebSocket handles WebSocket upgrade and streams events until the
// client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	go h.writeLoop(c)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
}

// remove unregisters c and closes its connection. Safe to call twice.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.mu.Unlock()
	c.conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of events not delivered to slow clients.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}
