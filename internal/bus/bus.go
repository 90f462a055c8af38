// Package bus is a small in-process event bus. Components publish named events
// and any number of listeners receive them; it replaces module-level mutable
// callback registries with an explicit, constructor-injected dependency.
package bus

import (
	"sync"

	"github.com/google/uuid"
)

// Handler receives the payload published for a subscribed event.
type Handler func(payload any)

// Bus fans out published events to all subscribed handlers. Safe for
// concurrent use. Handlers run synchronously on the publishing goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]map[string]Handler)}
}

// Subscribe registers fn for the named event and returns an unsubscribe
// function. Multiple handlers per event are supported.
func (b *Bus) Subscribe(event string, fn Handler) (unsubscribe func()) {
	id := uuid.New().String()
	b.mu.Lock()
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[string]Handler)
	}
	b.handlers[event][id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers[event], id)
		b.mu.Unlock()
	}
}

// Publish delivers payload to every handler subscribed to event.
func (b *Bus) Publish(event string, payload any) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event]))
	for _, fn := range b.handlers[event] {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(payload)
	}
}
