// Package sse fans execution trace events out to streaming HTTP clients.
package sse

import (
	"sync"
	"time"

	"github.com/Ntarekp/teamSynth/internal/domain/execution"
)

const clientBuffer = 100

// Client is one connected stream. An empty ExecutionID receives every event.
type Client struct {
	ID          string
	ExecutionID string
	ConnectedAt time.Time
	Events      chan execution.TraceEvent
}

func NewClient(id, executionID string) *Client {
	return &Client{
		ID:          id,
		ExecutionID: executionID,
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan execution.TraceEvent, clientBuffer),
	}
}

func (c *Client) wants(ev execution.TraceEvent) bool {
	return c.ExecutionID == "" || c.ExecutionID == ev.ExecutionID
}

// Hub manages SSE clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	dropped uint64
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[client.ID]; ok {
		close(old.Events)
	}
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped is the number of events discarded because a client buffer was full.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Publish delivers ev to every interested client without blocking. Slow
// clients lose events.
func (h *Hub) Publish(ev execution.TraceEvent) {
	h.mu.RLock()
	var missed uint64
	for _, c := range h.clients {
		if c.wants(ev) && !trySend(c, ev) {
			missed++
		}
	}
	h.mu.RUnlock()
	if missed > 0 {
		h.mu.Lock()
		h.dropped += missed
		h.mu.Unlock()
	}
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Events)
		delete(h.clients, id)
	}
}

func trySend(c *Client, ev execution.TraceEvent) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
