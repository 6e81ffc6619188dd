package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

type client struct {
	conn   *websocket.Conn
	userID string // empty receives every notification
}

// Hub streams notifications to websocket clients. A client may connect with
// ?userId=… to receive only that user's notifications and global ones.
type Hub struct {
	broadcast chan Notification

	mu      sync.RWMutex
	clients map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHub returns a Hub buffering up to size pending notifications.
// Start it with Run.
func NewHub(size int) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		broadcast: make(chan Notification, size),
		clients:   make(map[*client]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Notify implements Notifier. It never blocks: when the buffer is full the
// notification is dropped.
func (h *Hub) Notify(_ context.Context, n Notification) {
	select {
	case h.broadcast <- n:
	case <-h.ctx.Done():
	default:
		slog.Warn("notification hub full, dropping", "type", n.Kind)
	}
}

// Run delivers buffered notifications until ctx is done or Close is called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.Close()
			return
		case <-h.ctx.Done():
			return
		case n := <-h.broadcast:
			h.deliver(n)
		}
	}
}

// Close disconnects every client and stops Run.
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	for c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, userID: r.URL.Query().Get("userId")}

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	total := len(h.clients)
	h.mu.Unlock()
	slog.Debug("notification client connected", "userId", c.userID, "total", total)

	// Clients only listen; reading keeps control frames flowing and detects
	// the disconnect.
	defer h.wg.Done()
	defer h.remove(c)
	for {
		if _, _, err := conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) deliver(n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	data, err := json.Marshal(n)
	if err != nil {
		slog.Warn("marshal notification failed", "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.userID == "" || n.UserID == "" || c.userID == n.UserID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		ctx, cancel := context.WithTimeout(h.ctx, writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("notification write failed", "userId", c.userID, "err", err)
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
