package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite-based event store.
// Use ":memory:" for in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, journalError(ErrDatabaseOpenFailed, err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, journalError(ErrInitializeSchemaFailed, err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_session_id ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_event_type ON events(event_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store. Timestamps are stored with
// millisecond precision.
func (s *SQLiteStore) Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return journalError(ErrMarshalPayloadFailed, err)
		}
	}
	if payload == nil {
		payload = []byte("{}")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (session_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		sessionID, eventType, time.Now().UnixMilli(), payload, metadataJSON,
	)
	if err != nil {
		return journalError(ErrEventAppendFailed, err)
	}
	return nil
}

// GetBySession retrieves all events of one session.
func (s *SQLiteStore) GetBySession(ctx context.Context, sessionID string) ([]Event, error) {
	return s.query(ctx,
		"SELECT id, session_id, event_type, timestamp, payload, metadata FROM events WHERE session_id = ? ORDER BY id",
		sessionID,
	)
}

// GetRange retrieves events within a time range, inclusive.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx,
		"SELECT id, session_id, event_type, timestamp, payload, metadata FROM events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
}

// Sessions lists recorded sessions, most recent activity first.
func (s *SQLiteStore) Sessions(ctx context.Context) ([]SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, MIN(timestamp), MAX(timestamp), COUNT(*), MAX(id) FROM events GROUP BY session_id ORDER BY MAX(id) DESC",
	)
	if err != nil {
		return nil, journalError(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var first, last, lastID int64
		if err := rows.Scan(&info.ID, &first, &last, &info.Events, &lastID); err != nil {
			return nil, journalError(ErrEventQueryFailed, err)
		}
		info.FirstEvent = time.UnixMilli(first)
		info.LastEvent = time.UnixMilli(last)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, journalError(ErrEventQueryFailed, err)
	}
	return out, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, journalError(ErrEventQueryFailed, err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var e BaseEvent
		var timestamp int64
		var metadataJSON []byte

		if err := rows.Scan(&e.EventID, &e.EventSessionID, &e.EventType, &timestamp, &e.EventPayload, &metadataJSON); err != nil {
			return nil, journalError(ErrEventQueryFailed, err)
		}
		e.EventTimestamp = time.UnixMilli(timestamp)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, journalError(ErrUnmarshalPayloadFailed, err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, journalError(ErrEventQueryFailed, err)
	}
	return events, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
