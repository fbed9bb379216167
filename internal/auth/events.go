package auth

import (
	"sync"

	"adboard-api/internal/permissions"
)

// Broadcaster fans authentication-state events out to subscribers.
// The identity provider notifies the API of logins, logouts and token
// refreshes; the permission session manager subscribes so cached
// permission sessions follow the authentication lifecycle.
type Broadcaster struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[uint64]func(permissions.SessionEvent)
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		handlers: make(map[uint64]func(permissions.SessionEvent)),
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
func (b *Broadcaster) Subscribe(handler func(permissions.SessionEvent)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers the event to every current subscriber. Handlers run
// synchronously on the caller's goroutine.
func (b *Broadcaster) Publish(event permissions.SessionEvent) {
	b.mu.RLock()
	handlers := make([]func(permissions.SessionEvent), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
