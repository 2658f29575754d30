package hub

import (
	"encoding/json"
	"sync"
)

// Event represents a real-time event to be sent to clients.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Client represents a single client connection (a user watching a town).
// It's essentially a channel that the SSE handler will listen to.
type Client chan []byte

// Hub manages all watched towns and their clients.
type Hub struct {
	towns map[string]map[Client]bool
	mu    sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		towns: make(map[string]map[Client]bool),
	}
}

// Subscribe adds a new client to a specific town.
func (h *Hub) Subscribe(townID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.towns[townID]; !ok {
		h.towns[townID] = make(map[Client]bool)
	}
	h.towns[townID][client] = true
}

// Unsubscribe removes a client from a town.
func (h *Hub) Unsubscribe(townID string, client Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.towns[townID]; ok {
		if _, ok := clients[client]; ok {
			delete(clients, client)
			close(client) // Close the channel to signal the SSE handler to stop.
			if len(clients) == 0 {
				delete(h.towns, townID)
			}
		}
	}
}

// Broadcast sends an event to all clients watching a specific town.
func (h *Hub) Broadcast(townID string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.towns[townID]; ok {
		messageBytes, err := json.Marshal(event)
		if err != nil {
			return
		}

		for client := range clients {
			// Use a non-blocking send to prevent a slow client from blocking the hub.
			select {
			case client <- messageBytes:
			default:
				// Client channel is full, maybe they are disconnected or slow.
				// The unsubscribe logic will handle cleaning this up eventually.
			}
		}
	}
}
