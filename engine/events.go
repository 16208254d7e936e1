// Package engine implements the copy-trade decision and execution core:
// the sizing policy, the balance-driven circuit breaker, and the
// orchestrator that turns inbound whale signals into exchange orders and
// lifecycle events.
package engine

import (
	"encoding/json"
	"log"
	"sync"
)

// subscriber buffer. A slow observer that falls this far behind starts
// dropping events instead of stalling the engine.
const subscriberBuffer = 64

// Hub is a fan-out publish/subscribe channel for outbound events. It is
// decoupled from any transport; the WebSocket layer is just one subscriber.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a new observer and returns its event channel. The
// channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes an observer and closes its channel.
func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Publish marshals the event once and delivers it to every observer.
// Delivery is fire-and-forget: a full subscriber buffer drops the event.
func (h *Hub) Publish(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Hub] Failed to marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// Subscribers returns the current observer count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every observer channel and rejects future subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
