package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrHubClosed       = errors.New("notification hub is shut down")
)

// Hub is the presence registry: userID -> open sockets. It is owned by the
// server and injected into the dispatcher; there is no package-level hub.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	totalConns int
	closed     bool
	presence   *PresenceTracker
}

// NewHub creates a hub. rdb may be nil, in which case presence is local only.
func NewHub(rdb *redis.Client) *Hub {
	return NewHubWithPresence(NewPresenceTracker(rdb, PresenceConfig{}))
}

// NewHubWithPresence creates a hub over an existing tracker.
func NewHubWithPresence(presence *PresenceTracker) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: presence,
	}
}

// Name identifies the hub in metrics.
func (h *Hub) Name() string { return "notification hub" }

// Register adds a socket for userID and returns its client.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Register(context.Background(), userID)
	return client, nil
}

// UnregisterClient removes client and closes its send queue. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	if removed {
		client.closeSend()
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Unregister(client.UserID)
	}
}

// Broadcast queues message on every local socket of userID without blocking.
func (h *Hub) Broadcast(userID uint, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for c := range h.conns[userID] {
		c.TrySend(data)
	}
}

// IsOnline reports whether userID holds a socket on this instance. It only
// reads the in-memory registry, so it is safe on the request path.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.HasLocal(userID)
}

// OnlineElsewhere reports whether another instance has recently seen userID.
// It queries Redis and belongs off the request path.
func (h *Hub) OnlineElsewhere(ctx context.Context, userID uint) bool {
	return h.presence.SeenRecently(ctx, userID)
}

// ConnectionCount returns the number of local sockets for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Touch marks userID as active.
func (h *Hub) Touch(userID uint) {
	h.presence.Touch(context.Background(), userID)
}

// StartWiring feeds events published by other instances into local sockets.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Broadcast)
}

// Shutdown sends a going-away close frame to every socket and closes it.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	deadline := time.Now().Add(writeWait)
	for userID, clients := range h.conns {
		for client := range clients {
			client.closeSend()
			if client.Conn == nil {
				continue
			}
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")
			if err := client.Conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
				middleware.Logger.Debug("failed to write close frame",
					slog.Uint64("user_id", uint64(userID)),
					slog.String("error", err.Error()),
				)
			}
			_ = client.Conn.Close()
		}
		observability.WebSocketConnectionsTotal.Sub(float64(len(clients)))
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.totalConns = 0
	return nil
}
