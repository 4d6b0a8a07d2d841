package server

import (
	"encoding/json"
	"log/slog"

	"snapshare/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// requireUpgrade rejects plain HTTP requests to websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// WebsocketHandler handles GET /api/v1/ws
// @Summary Notification socket
// @Description Server-push stream of like, dislike and follow events for the caller
// @Tags realtime
// @Security BearerAuth
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok {
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(uid, conn)
		if err != nil {
			middleware.Logger.Warn("websocket registration refused",
				slog.Uint64("user_id", uint64(uid)),
				slog.String("error", err.Error()),
			)
			if payload, merr := json.Marshal(fiber.Map{"type": "error", "message": err.Error()}); merr == nil {
				_ = conn.WriteMessage(websocket.TextMessage, payload)
			}
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
