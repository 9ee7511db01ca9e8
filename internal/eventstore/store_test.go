package eventstore

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSessionID = "session-1"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()
	payload := []byte(`{"test": "data"}`)

	require.NoError(t, st.Append(ctx, testSessionID, "TestEvent", payload, map[string]string{"key": "value"}))

	events, err := st.GetBySession(ctx, testSessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, testSessionID, e.SessionID())
	assert.Equal(t, "TestEvent", e.Type())
	assert.True(t, bytes.Equal(payload, e.Payload()))
	assert.Equal(t, "value", e.Metadata()["key"])
	assert.WithinDuration(t, time.Now(), e.Timestamp(), 5*time.Second)
}

func TestEventStoreNilPayloadAndMetadata(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Append(t.Context(), testSessionID, "Empty", nil, nil))

	events, err := st.GetBySession(t.Context(), testSessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []byte("{}"), events[0].Payload())
	assert.Nil(t, events[0].Metadata())
}

func TestEventStoreGetRange(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()

	before := time.Now().Add(-time.Second)
	require.NoError(t, st.Append(ctx, "s1", "A", nil, nil))
	require.NoError(t, st.Append(ctx, "s2", "B", nil, nil))
	after := time.Now().Add(time.Second)

	events, err := st.GetRange(ctx, before, after)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Type())
	assert.Equal(t, "B", events[1].Type())

	events, err = st.GetRange(ctx, after, after.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEventStoreSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, st.Append(ctx, "old", "A", nil, nil))
	require.NoError(t, st.Append(ctx, "old", "B", nil, nil))
	require.NoError(t, st.Append(ctx, "new", "A", nil, nil))

	sessions, err := st.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].Events)
	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, 2, sessions[1].Events)
}

func TestEventStoreClosedStoreErrors(t *testing.T) {
	st, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Close())

	err = st.Append(t.Context(), testSessionID, "A", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventAppendFailed))

	_, err = st.GetBySession(t.Context(), testSessionID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventQueryFailed))
}

func TestEventStorePersistsToFile(t *testing.T) {
	path := t.TempDir() + "/journal.db"
	st, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Append(t.Context(), testSessionID, "A", nil, nil))
	require.NoError(t, st.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.GetBySession(t.Context(), testSessionID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
