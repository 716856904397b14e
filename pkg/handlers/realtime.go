package handlers

import (
	"context"

	"rapport/pkg/auth"
	"rapport/pkg/envelope"
	"rapport/pkg/hub"
	"rapport/pkg/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type RealtimeHandler struct {
	hub *hub.Hub
}

func NewRealtime(h *hub.Hub) *RealtimeHandler {
	return &RealtimeHandler{hub: h}
}

// Socket must run behind middleware.WebSocketAuth.
func (h *RealtimeHandler) Socket() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		p, ok := c.Locals(middleware.PrincipalLocal).(*auth.Principal)
		if !ok {
			c.Close()
			return
		}
		h.hub.Serve(context.Background(), c, p.UserID)
	})
}

func (h *RealtimeHandler) Status(c *fiber.Ctx) error {
	return envelope.OK(c, fiber.Map{
		"clients": h.hub.ClientCount(),
		"users":   h.hub.UserCount(),
	})
}
