package notifications

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"snapshare/internal/middleware"
	"snapshare/internal/observability"

	"github.com/gofiber/websocket/v2"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	sendBuffer = 64

	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// Client is one websocket between a user and the hub.
type Client struct {
	hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	limiter *rate.Limiter

	closeOnce sync.Once
}

// NewClient creates a client with a buffered send queue.
func NewClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:     hub,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
	}
}

type inboundMessage struct {
	Type string `json:"type"`
}

// ReadPump reads until the peer goes away, then unregisters the client.
// The notification channel is server-push; the only inbound message
// with a reply is {"type":"ping"}.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.hub.Touch(c.UserID)
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed",
					slog.Uint64("user_id", uint64(c.UserID)),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if !c.limiter.Allow() {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "rate_limited").Inc()
			continue
		}
		c.hub.Touch(c.UserID)

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			c.TrySend([]byte(`{"type":"pong"}`))
		}
	}
}

// WritePump drains Send to the socket and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message, dropping it if the buffer is full or the client is gone.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped message",
			slog.Uint64("user_id", uint64(c.UserID)),
		)
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}
