// Package websocket pushes crawl progress snapshots to browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fwojciec/simpledocs"
	"github.com/gorilla/websocket"
)

// Client message types.
const (
	MessageGetProgress   = "get_progress"
	MessageResetProgress = "reset_progress"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is a request sent by a client.
type Message struct {
	Type string `json:"type"`
}

// Handler upgrades HTTP requests to websocket connections and sends every
// progress snapshot to each connected client. A client receives the
// current snapshot as soon as it connects.
type Handler struct {
	progress simpledocs.ProgressService
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[*client]struct{}
	unsubscribe func()
}

type client struct {
	conn *websocket.Conn
	send chan simpledocs.ProgressSnapshot
}

// NewHandler subscribes to progress and returns the handler. Call Close to
// unsubscribe and disconnect all clients.
func NewHandler(progress simpledocs.ProgressService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handler{
		progress: progress,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
	h.unsubscribe = progress.Subscribe(h.broadcast)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{conn: conn, send: make(chan simpledocs.ProgressSnapshot, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	c.enqueue(h.progress.Snapshot())
	count := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "clients", count)

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

// Clients returns the number of connected clients.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unsubscribes from progress and disconnects every client.
func (h *Handler) Close() error {
	h.unsubscribe()
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

func (h *Handler) broadcast(snap simpledocs.ProgressSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(snap)
	}
}

func (h *Handler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Info("websocket client disconnected", "clients", len(h.clients))
}

// enqueue never blocks. When the buffer is full the oldest snapshot is
// dropped; each snapshot is complete, so only the latest matters.
func (c *client) enqueue(snap simpledocs.ProgressSnapshot) {
	for {
		select {
		case c.send <- snap:
			return
		default:
		}
		select {
		case <-c.send:
		default:
		}
	}
}

func (h *Handler) readPump(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("invalid websocket message", "message", string(data), "err", err)
			continue
		}
		switch msg.Type {
		case MessageGetProgress:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				c.enqueue(h.progress.Snapshot())
			}
			h.mu.Unlock()
		case MessageResetProgress:
			h.progress.Reset(context.WithoutCancel(ctx))
		default:
			h.logger.Debug("ignoring websocket message", "type", msg.Type)
		}
	}
}

func (h *Handler) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snap, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(snap); err != nil {
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
