// Package notify pushes analysis notices to the browsers watching a session.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bryanwahyu/leafscan/internal/domain/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// client wraps a connection; gorilla allows one concurrent writer only.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// Hub keeps the open connections of every session.
type Hub struct {
	mutex   sync.RWMutex
	clients map[session.ID]map[*client]struct{}
	logger  *slog.Logger
}

var _ session.Notifier = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[session.ID]map[*client]struct{}),
		logger:  logger,
	}
}

// Message is what a browser receives.
type Message struct {
	Type   string         `json:"type"`
	Notice session.Notice `json:"notice"`
}

// Notify sends n to every connection of id. Failed connections are dropped.
func (h *Hub) Notify(ctx context.Context, id session.ID, n session.Notice) {
	payload, err := json.Marshal(Message{Type: "notice", Notice: n})
	if err != nil {
		h.logger.Error("encode notice", "error", err)
		return
	}

	h.mutex.RLock()
	targets := make([]*client, 0, len(h.clients[id]))
	for c := range h.clients[id] {
		targets = append(targets, c)
	}
	h.mutex.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("notice delivery failed", "session", id, "error", err)
			h.unregister(id, c)
		}
	}
}

// Count returns the number of open connections for id.
func (h *Hub) Count(id session.ID) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[id])
}

// Serve upgrades the request and keeps the connection registered under id
// until the browser goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, id session.ID) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}
	h.register(id, c)
	defer h.unregister(id, c)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) register(id session.ID, c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	set, ok := h.clients[id]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[id] = set
	}
	set[c] = struct{}{}
	h.logger.Debug("websocket connected", "session", id, "connections", len(set))
}

func (h *Hub) unregister(id session.ID, c *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	set, ok := h.clients[id]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, id)
	}
	c.conn.Close()
}
