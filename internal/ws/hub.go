// Package ws implements the dashboard notification fan-out: a hub of
// connected observers that receives state-change events from the services
// and pushes them to every dashboard as JSON. Delivery is best effort; an
// observer that fails a write is dropped and closed, and the failure never
// propagates to the caller that produced the event.
package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Observer is one connected dashboard client.
type Observer interface {
	// Send writes one already-marshalled event. An error marks the observer
	// dead; the hub will close and forget it.
	Send(data []byte) error
	// Close releases the underlying connection.
	Close() error
}

// Hub fans events out to all registered observers. Safe for concurrent use.
type Hub struct {
	// Snapshot builds the init event sent to every new observer before it
	// receives live events. Optional.
	Snapshot func() map[string]any

	mu        sync.Mutex
	observers map[Observer]struct{}
}

// NewHub returns an empty hub.
func NewHub(snapshot func() map[string]any) *Hub {
	return &Hub{
		Snapshot:  snapshot,
		observers: make(map[Observer]struct{}),
	}
}

// Register adds an observer, sending it the init snapshot first so the
// dashboard starts from current state before live events arrive.
func (h *Hub) Register(o Observer) {
	if h.Snapshot != nil {
		if data, err := json.Marshal(h.Snapshot()); err == nil {
			if err := o.Send(data); err != nil {
				o.Close() //nolint:errcheck
				return
			}
		}
	}
	h.mu.Lock()
	h.observers[o] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes and closes an observer. Safe to call twice.
func (h *Hub) Unregister(o Observer) {
	h.mu.Lock()
	_, ok := h.observers[o]
	delete(h.observers, o)
	h.mu.Unlock()
	if ok {
		o.Close() //nolint:errcheck
	}
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Broadcast marshals the event once and sends it to every observer. Failed
// observers are pruned silently.
func (h *Hub) Broadcast(event map[string]any) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("ws: event marshal failed")
		return
	}

	h.mu.Lock()
	targets := make([]Observer, 0, len(h.observers))
	for o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	var dead []Observer
	for _, o := range targets {
		if err := o.Send(data); err != nil {
			dead = append(dead, o)
		}
	}
	for _, o := range dead {
		h.Unregister(o)
	}
}
