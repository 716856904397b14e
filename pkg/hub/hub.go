// Package hub keeps the authenticated websocket connections of this instance
// and pushes notifications to them.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"rapport/pkg/apperr"
	"rapport/pkg/envelope"
	"rapport/pkg/logging"
	"rapport/pkg/models"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of *websocket.Conn the hub uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Message is the payload of every envelope written to a socket.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type clientConn struct {
	conn   Conn
	userID int
	mu     sync.Mutex
}

func (cc *clientConn) send(data []byte) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.conn.WriteMessage(websocket.TextMessage, data)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[Conn]*clientConn
	byUser  map[int][]*clientConn
	log     logging.Logger
}

func New(log logging.Logger) *Hub {
	return &Hub{
		clients: make(map[Conn]*clientConn),
		byUser:  make(map[int][]*clientConn),
		log:     log,
	}
}

// Serve registers c for userID and reads from it until the peer goes away.
// Clients may send {"type":"ping"}; anything else is answered with an error.
func (h *Hub) Serve(ctx context.Context, c Conn, userID int) {
	cc := &clientConn{conn: c, userID: userID}
	h.add(cc)
	h.log.Info(ctx, "websocket connected", "user_id", userID, "clients", h.ClientCount())

	defer func() {
		h.remove(cc)
		c.Close()
		h.log.Info(ctx, "websocket disconnected", "user_id", userID, "clients", h.ClientCount())
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}

		var in Message
		if err := json.Unmarshal(raw, &in); err != nil || in.Type != "ping" {
			h.write(ctx, cc, envelope.Failure("", apperr.CodeBadRequest, "unsupported message"))
			continue
		}
		h.write(ctx, cc, envelope.Success("", Message{Type: "pong"}))
	}
}

func (h *Hub) add(cc *clientConn) {
	h.mu.Lock()
	h.clients[cc.conn] = cc
	h.byUser[cc.userID] = append(h.byUser[cc.userID], cc)
	h.mu.Unlock()
}

func (h *Hub) remove(cc *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, cc.conn)
	conns := h.byUser[cc.userID]
	for i, other := range conns {
		if other == cc {
			conns = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.byUser, cc.userID)
	} else {
		h.byUser[cc.userID] = conns
	}
}

func (h *Hub) write(ctx context.Context, cc *clientConn, env envelope.Envelope) {
	data, err := env.Marshal()
	if err != nil {
		return
	}
	if err := cc.send(data); err != nil {
		h.log.Debug(ctx, "websocket write failed", "user_id", cc.userID, "error", err)
	}
}

// Deliver writes n to every connection of its user and returns how many
// sockets accepted it.
func (h *Hub) Deliver(n models.Notification) int {
	data, err := envelope.Success(n.ID, Message{Type: "notification", Data: n}).Marshal()
	if err != nil {
		return 0
	}

	h.mu.RLock()
	conns := append([]*clientConn(nil), h.byUser[n.UserID]...)
	h.mu.RUnlock()

	delivered := 0
	for _, cc := range conns {
		if err := cc.send(data); err != nil {
			h.log.Debug(context.Background(), "notification write failed", "user_id", n.UserID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserCount is the number of distinct users with at least one socket.
func (h *Hub) UserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}
