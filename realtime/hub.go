// Package realtime pushes content change notifications to browsers over websockets,
// so list and detail pages can refresh without polling.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Event types.
const (
	PostCreated    = "post.created"
	PostUpdated    = "post.updated"
	PostDeleted    = "post.deleted"
	CommentCreated = "comment.created"
	CommentUpdated = "comment.updated"
	CommentDeleted = "comment.deleted"
)

// Event is one change notification.
type Event struct {
	Type   string    `json:"type"`
	Kind   string    `json:"kind"`
	ID     string    `json:"id"`
	PostID string    `json:"post_id,omitempty"`
	At     time.Time `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to subscribers of a topic (a post kind).
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the API is already CORS-gated; pages are served from the same origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log:     logger,
		clients: make(map[string]map[*client]struct{}),
	}
}

// Subscribers returns the number of open connections on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Publish delivers ev to every subscriber of ev.Kind. Clients whose buffer is
// full are dropped rather than blocking the publisher.
func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[ev.Kind] {
		select {
		case c.send <- data:
		default:
			h.removeLocked(ev.Kind, c)
		}
	}
}

// Serve upgrades the request and subscribes the connection to topic.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*client]struct{})
	}
	h.clients[topic][c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(topic, c)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(topic string, c *client) {
	if _, ok := h.clients[topic][c]; !ok {
		return
	}
	delete(h.clients[topic], c)
	close(c.send)
	if len(h.clients[topic]) == 0 {
		delete(h.clients, topic)
	}
}

func (h *Hub) readPump(topic string, c *client) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(topic, c)
		h.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every subscriber. Hijacked websocket connections are not
// tracked by http.Server.Shutdown, so the server calls this while draining.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, clients := range h.clients {
		for c := range clients {
			h.removeLocked(topic, c)
		}
	}
}
