package store

import (
	"context"
	"reflect"
	"sync"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// Bus is an ordered set of listeners with synchronous delivery.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewBus() *Bus {
	return &Bus{}
}

// Add registers l. It returns false when l is already registered, nil, or
// not comparable.
func (b *Bus) Add(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.listeners {
		if existing == l {
			return false
		}
	}
	b.listeners = append(b.listeners, l)
	return true
}

// Remove unregisters l and reports whether it was registered.
func (b *Bus) Remove(l Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.listeners {
		if existing == l {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Listeners returns a snapshot of the registered listeners in registration order.
func (b *Bus) Listeners() []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Listener, len(b.listeners))
	copy(out, b.listeners)
	return out
}

// Len returns the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Clear drops every listener.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.listeners = nil
	b.mu.Unlock()
}

// Publish delivers e to every listener in order and stops at the first error.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	return Broadcast(ctx, b.Listeners(), e)
}

// Broadcast delivers e to listeners in order and stops at the first error,
// which is returned as a listener error carrying the event kind and subject.
func Broadcast(ctx context.Context, listeners []Listener, e Event) error {
	for i, l := range listeners {
		if err := e.Deliver(ctx, l); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryListener, "listener failed").
				WithContext("event", string(e.Kind)).
				WithContext("subject", e.Subject()).
				WithContext("listener", i).
				Build()
		}
	}
	return nil
}
