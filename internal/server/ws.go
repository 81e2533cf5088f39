package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/optiview/optiview/internal/events"
)

const (
	writeWait      = 10 * time.Second
	clientBacklog  = 64
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Progress events are broadcast-only; cross-origin reads are harmless.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsEvent is the envelope pushed to WebSocket clients.
type wsEvent struct {
	Type    string `json:"type"` // crawl_progress | scan_progress | completed
	Payload any    `json:"payload"`
}

// Hub broadcasts pipeline events to connected WebSocket clients. It
// implements events.Sink; slow clients are dropped rather than blocking
// the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan wsEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan wsEvent, clientBacklog)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// readLoop drains the connection so pings and close frames are handled;
// clients never send meaningful data.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.drop(c)
	for ev := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *Hub) broadcast(ev wsEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			// Slow client: drop it rather than stalling the pipeline.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// CrawlProgress implements events.Sink.
func (h *Hub) CrawlProgress(p events.CrawlProgress) {
	h.broadcast(wsEvent{Type: "crawl_progress", Payload: p})
}

// ScanProgress implements events.Sink.
func (h *Hub) ScanProgress(p events.ScanProgress) {
	h.broadcast(wsEvent{Type: "scan_progress", Payload: p})
}

// Completed implements events.Sink.
func (h *Hub) Completed(c events.Completion) {
	h.broadcast(wsEvent{Type: "completed", Payload: c})
}
