package eventstore

import (
	"context"
	"time"
)

// SessionInfo summarizes one session recorded in the journal.
type SessionInfo struct {
	ID         string
	FirstEvent time.Time
	LastEvent  time.Time
	Events     int
}

// Store defines the interface for persisting and retrieving events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error

	// GetBySession retrieves all events of one session in append order.
	GetBySession(ctx context.Context, sessionID string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Sessions lists recorded sessions, most recent first.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Close closes the store and releases resources.
	Close() error
}
