// Package events fans out best-effort notifications to UI subscribers.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// Event names understood by the UI.
const (
	TaskRefresh     = "task-refresh"
	SnapshotRefresh = "snapshot-refresh"
)

// Event is the payload delivered to subscribers and the webhook.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Hub broadcasts events without acknowledgment or retry. A subscriber whose
// buffer is full misses the event. It is safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	buffer  int
	webhook *webhookSink
	now     func() time.Time
}

// NewHub creates a Hub. A non-empty webhookURL also forwards every event
// to that endpoint.
func NewHub(buffer int, webhookURL, webhookSecret string) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	h := &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
	if webhookURL != "" {
		h.webhook = newWebhookSink(webhookURL, webhookSecret)
	}
	return h
}

// Emit sends a named event to all current subscribers.
func (h *Hub) Emit(name string, data any) {
	ev := Event{Type: name, Timestamp: h.now().Unix(), Data: data}

	h.mu.RLock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("event dropped for slow subscriber", "event", name)
		}
	}
	h.mu.RUnlock()

	if h.webhook != nil {
		h.webhook.send(ev)
	}
}

// Subscribe registers a new listener. The returned cancel func must be
// called to release it; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of registered listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
