package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time notification pushed to connected clients.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	UserID string         `json:"user_id,omitempty"`
	Day    int            `json:"day,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, userID string, day int, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		UserID: userID,
		Day:    day,
		Extra:  extra,
	}
}

// Hub maintains the set of active WebSocket clients and routes messages to
// everyone, to one user's sessions, or to administrators.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) int {
	return h.deliver(msg, func(*Client) bool { return true })
}

// SendToUser sends a message to every connection the user has open.
func (h *Hub) SendToUser(userID string, msg Message) int {
	return h.deliver(msg, func(c *Client) bool { return c.userID == userID })
}

// SendToAdmins sends a message to administrator connections.
func (h *Hub) SendToAdmins(msg Message) int {
	return h.deliver(msg, func(c *Client) bool { return c.admin })
}

// deliver returns how many clients accepted the message.
func (h *Hub) deliver(msg Message, match func(*Client) bool) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal websocket message", "type", msg.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		if !match(c) {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			// buffer full, drop
			h.logger.Debug("websocket message dropped", "type", msg.Type, "user_id", c.userID)
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
