// Package fanout delivers live progress events to the observers of a
// session. Delivery is best-effort and at-most-once: a dead observer is
// dropped on the first failed send and never stalls the session.
package fanout

import (
	"sync"

	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/infra/metrics"
)

// Observer is one live progress connection. Send must be safe for the hub to
// call from its publishing goroutine; Close must be idempotent.
type Observer interface {
	Send(u model.ProgressUpdate) error
	Close() error
}

type Hub struct {
	mu        sync.RWMutex
	observers map[string]map[Observer]struct{}
}

func NewHub() *Hub {
	return &Hub{observers: make(map[string]map[Observer]struct{})}
}

// Register adds an observer for a session. Registering the same observer
// twice is a no-op.
func (h *Hub) Register(sessionID string, o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.observers[sessionID]
	if !ok {
		set = make(map[Observer]struct{})
		h.observers[sessionID] = set
	}
	if _, dup := set[o]; dup {
		return
	}
	set[o] = struct{}{}
	metrics.ObserverRegistered()
}

// Unregister removes an observer without closing it. Unknown observers are
// ignored.
func (h *Hub) Unregister(sessionID string, o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sessionID, o)
}

func (h *Hub) removeLocked(sessionID string, o Observer) bool {
	set, ok := h.observers[sessionID]
	if !ok {
		return false
	}
	if _, present := set[o]; !present {
		return false
	}
	delete(set, o)
	if len(set) == 0 {
		delete(h.observers, sessionID)
	}
	metrics.ObserverUnregistered()
	return true
}

// Publish sends the update to every observer of the session. Failed
// observers are closed and removed; other observers are unaffected.
// Publishing to a session with zero observers is a no-op.
func (h *Hub) Publish(sessionID string, u model.ProgressUpdate) {
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers[sessionID]))
	for o := range h.observers[sessionID] {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	for _, o := range targets {
		if err := o.Send(u); err != nil {
			h.mu.Lock()
			removed := h.removeLocked(sessionID, o)
			h.mu.Unlock()
			if removed {
				metrics.ObserverDropped()
				_ = o.Close()
			}
		}
	}
}

// CloseSession closes and removes every observer of a session. Called when
// the session reaches a terminal state or is deleted.
func (h *Hub) CloseSession(sessionID string) {
	h.mu.Lock()
	set := h.observers[sessionID]
	delete(h.observers, sessionID)
	h.mu.Unlock()

	for o := range set {
		metrics.ObserverUnregistered()
		_ = o.Close()
	}
}

// Count returns the number of live observers for a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers[sessionID])
}
