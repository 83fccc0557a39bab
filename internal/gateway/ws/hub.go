// Package ws is the websocket transport: it upgrades connections, runs
// their request frames through the funnel and pushes room notifications.
package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syntrixbase/docflow/internal/api"
	"github.com/syntrixbase/docflow/internal/matching"
	"github.com/syntrixbase/docflow/pkg/model"
)

// Error identifiers of notification delivery failures.
const (
	ErrIDConnectionNotFound = "network.connection.not_found"
	ErrIDBufferFull         = "network.connection.buffer_full"
)

var _ matching.Connections = (*Hub)(nil)

// DisconnectFunc is called once per closed connection.
type DisconnectFunc func(ctx context.Context, connectionID string)

// Hub maintains the set of active clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool

	executor     api.Executor
	onDisconnect DisconnectFunc
	logger       *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With("component", "ws-hub"),
	}
}

// SetExecutor sets the request executor. The matching engine needs the hub
// before the funnel exists, so it is set once wiring completes.
func (h *Hub) SetExecutor(e api.Executor) {
	h.mu.Lock()
	h.executor = e
	h.mu.Unlock()
}

// OnDisconnect registers the callback run when a connection closes.
func (h *Hub) OnDisconnect(fn DisconnectFunc) {
	h.mu.Lock()
	h.onDisconnect = fn
	h.mu.Unlock()
}

func (h *Hub) getExecutor() api.Executor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.executor
}

// Register adds a client. It reports false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

// Unregister removes a client and runs the disconnect callback.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	current, ok := h.clients[c.id]
	if ok && current == c {
		delete(h.clients, c.id)
	}
	fn := h.onDisconnect
	h.mu.Unlock()

	if !ok || current != c {
		return
	}
	c.closeSend()
	if fn != nil {
		fn(context.Background(), c.id)
	}
}

// Alive reports whether the connection is registered.
func (h *Hub) Alive(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}

// Send queues n on the connection without blocking.
func (h *Hub) Send(connectionID string, n matching.Notification) error {
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return model.NewError(model.KindNotFound, ErrIDConnectionNotFound,
			"connection %s not found", connectionID)
	}
	if !c.queue(n) {
		return model.NewError(model.KindUnavailable, ErrIDBufferFull,
			"send buffer of connection %s is full", connectionID)
	}
	return nil
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	if len(clients) > 0 {
		h.logger.Info("Closed websocket connections", "count", len(clients))
	}
}
