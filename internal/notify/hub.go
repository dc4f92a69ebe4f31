// Package notify fans draw events out to the clients watching a session.
package notify

import (
	"sync"

	"github.com/google/logger"
)

// Event types published by the draw flow.
const (
	EventDrawStatus    = "draw.status"
	EventDrawStarted   = "draw.started"
	EventDrawCompleted = "draw.completed"
)

// Event is one message delivered to subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// subscriberBuffer bounds how far a slow client may fall behind before events are dropped.
const subscriberBuffer = 16

// Hub routes events to subscribers by topic (the tenant id).
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving events for topic and a function that
// unsubscribes and closes the channel.
func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan Event]struct{})
	}
	h.subs[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[topic], ch)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to every subscriber of topic without blocking.
func (h *Hub) Publish(topic string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[topic] {
		select {
		case ch <- ev:
		default:
			logger.Warningf("Dropping %s event for a slow subscriber on %s", ev.Type, topic)
		}
	}
}

// Subscribers returns the number of subscribers on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
