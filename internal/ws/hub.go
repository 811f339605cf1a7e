package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultSendTimeout = 10 * time.Second

// client pairs a connection with its write lock. Gorilla connections allow
// one concurrent writer, and both the broadcast path and the keepalive ping
// writer send on the same connection, so every write goes through here.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(timeout))
	return c.conn.WriteMessage(messageType, data)
}

// Hub manages viewer WebSocket connections and fans out broadcast events.
// One connection is registered per transport-level session; a reconnecting
// viewer gets a fresh entry.
type Hub struct {
	clients     map[*websocket.Conn]*client
	mu          sync.RWMutex
	sendTimeout time.Duration
}

// NewHub creates a new hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*websocket.Conn]*client),
		sendTimeout: defaultSendTimeout,
	}
}

// Register adds a connection to the active set and returns the write handle
// for it. No capacity limit, no dedup.
func (h *Hub) Register(conn *websocket.Conn) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl := &client{conn: conn}
	h.clients[conn] = cl
	log.Printf("[WS] Client registered (total: %d)", len(h.clients))
	return cl
}

// Unregister removes a connection. Safe to call for an already-removed one.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		log.Printf("[WS] Client unregistered (total: %d)", len(h.clients))
	}
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the event to every connection that was active when the
// call started. A send failure never aborts the pass: failed connections are
// collected and pruned only after every remaining connection has been tried.
// Each connection gets at most one delivery attempt per broadcast.
func (h *Hub) Broadcast(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[WS] Error marshaling %s event: %v", event.Event, err)
		return
	}

	h.mu.RLock()
	active := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		active = append(active, cl)
	}
	h.mu.RUnlock()

	if len(active) == 0 {
		return
	}
	log.Printf("[WS] Broadcasting %s to %d clients", event.Event, len(active))

	var dead []*client
	for _, cl := range active {
		if err := cl.write(websocket.TextMessage, data, h.sendTimeout); err != nil {
			log.Printf("[WS] Error sending to client: %v", err)
			dead = append(dead, cl)
		}
	}

	for _, cl := range dead {
		h.Unregister(cl.conn)
		cl.conn.Close()
	}
	log.Printf("[WS] Broadcast complete. sent=%d dead=%d", len(active)-len(dead), len(dead))
}
