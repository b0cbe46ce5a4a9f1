package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Client represents a single WebSocket connection with user context.
type Client struct {
	UserID uuid.UUID
	ConnID string
	Role   string
	Send   chan []byte
	Hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
}

// Event is the envelope every server push uses.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub maintains the set of active clients grouped by user and fans events
// out to them. Sends are fire-and-forget: a client whose buffer is full is
// skipped rather than blocking the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	// userID -> clients (one user can have multiple connections)
	byUser map[uuid.UUID]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		byUser:  make(map[uuid.UUID]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	if h.byUser[c.UserID] == nil {
		h.byUser[c.UserID] = make(map[*Client]struct{})
	}
	h.byUser[c.UserID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if m := h.byUser[c.UserID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byUser, c.UserID)
		}
	}
}

func (h *Hub) BroadcastToUser(userID uuid.UUID, event string, data interface{}) {
	payload, _ := json.Marshal(Event{Event: event, Data: data})
	h.mu.RLock()
	m := h.byUser[userID]
	if m == nil {
		h.mu.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, payload)
}

func (h *Hub) BroadcastAll(event string, data interface{}) {
	payload, _ := json.Marshal(Event{Event: event, Data: data})
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	deliver(clients, payload)
}

// BroadcastToRole targets every connected client holding the given role.
func (h *Hub) BroadcastToRole(role, event string, data interface{}) {
	payload, _ := json.Marshal(Event{Event: event, Data: data})
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.Role == role {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()
	deliver(clients, payload)
}

func deliver(clients []*Client, payload []byte) {
	for _, c := range clients {
		select {
		case c.Send <- payload:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
