package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// clientQueue is how many frames may wait for a slow client before it
	// is disconnected
	clientQueue = 16

	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local viewing
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// wsClient owns one connection. Only its writer goroutine writes to conn.
type wsClient struct {
	conn  *websocket.Conn
	queue chan []byte
}

// WSHub fans frames out to connected viewers. Publishing never waits on the
// network: each client drains its own queue, and a client whose queue is
// full is dropped.
type WSHub struct {
	mu           sync.Mutex
	clients      map[*websocket.Conn]*wsClient
	logger       *slog.Logger
	queueSize    int
	writeTimeout time.Duration
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:      make(map[*websocket.Conn]*wsClient),
		logger:       logger,
		queueSize:    clientQueue,
		writeTimeout: writeTimeout,
	}
}

// AddClient registers a connection and starts its writer.
func (h *WSHub) AddClient(conn *websocket.Conn) {
	c := &wsClient{conn: conn, queue: make(chan []byte, h.queueSize)}

	h.mu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()

	go h.writeLoop(c)
	h.logger.Info("server: websocket client connected", "clients", n)
}

func (h *WSHub) writeLoop(c *wsClient) {
	for data := range c.queue {
		c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("server: websocket write error", "error", err)
			h.RemoveClient(c.conn)
			return
		}
	}
}

// RemoveClient unregisters and closes a connection. Unknown connections are
// ignored.
func (h *WSHub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		h.detach(c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("server: websocket client disconnected", "clients", n)
	}
}

// detach must be called with h.mu held
func (h *WSHub) detach(c *wsClient) {
	delete(h.clients, c.conn)
	close(c.queue)
	c.conn.Close()
}

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Send queues a message for a single client.
func (h *WSHub) Send(conn *websocket.Conn, msg WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[conn]; ok {
		h.enqueue(c, data)
	}
	return nil
}

// Broadcast queues a message for every client.
func (h *WSHub) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("server: websocket marshal error", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.enqueue(c, data)
	}
}

// enqueue must be called with h.mu held
func (h *WSHub) enqueue(c *wsClient, data []byte) {
	select {
	case c.queue <- data:
	default:
		h.logger.Warn("server: dropping slow websocket client", "remote", c.conn.RemoteAddr().String())
		h.detach(c)
	}
}

// CloseAll disconnects every client.
func (h *WSHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.detach(c)
	}
}
