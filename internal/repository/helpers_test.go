package repository

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pkgrepo/internal/store"
	helpers "git.home.luguber.info/inful/pkgrepo/internal/testutil/testutils"
)

// eventLog records notifications in delivery order. fail, when set, can
// reject an event.
type eventLog struct {
	mu     sync.Mutex
	events []store.Event
	fail   func(store.Event) error
	l      *store.EventListener
}

func newEventLog() *eventLog {
	el := &eventLog{}
	el.l = &store.EventListener{Handle: el.handle}
	return el
}

func (el *eventLog) handle(_ context.Context, e store.Event) error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.fail != nil {
		if err := el.fail(e); err != nil {
			return err
		}
	}
	el.events = append(el.events, e)
	return nil
}

func (el *eventLog) setFail(fn func(store.Event) error) {
	el.mu.Lock()
	el.fail = fn
	el.mu.Unlock()
}

// lines renders events as "kind:subject" with package subjects by name and
// auxiliary subjects by base name.
func (el *eventLog) lines() []string {
	el.mu.Lock()
	defer el.mu.Unlock()
	out := make([]string, 0, len(el.events))
	for _, e := range el.events {
		subject := e.Subject()
		if !e.Kind.IsPackage() {
			subject = filepath.Base(subject)
		}
		out = append(out, string(e.Kind)+":"+subject)
	}
	return out
}

func (el *eventLog) reset() {
	el.mu.Lock()
	el.events = nil
	el.mu.Unlock()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRepo builds a repository over pd whose listener is registered on
// the store directly, so no timer runs unless the test starts one.
func newTestRepo(t *testing.T, pd *helpers.PackageDir, mutate func(*Options)) (*Repository, *eventLog) {
	t.Helper()
	st := store.NewMemory()
	opts := Options{
		Name:         "test",
		Directory:    pd.Path(),
		PollInterval: 5 * time.Millisecond,
		Store:        st,
		Logger:       quietLogger(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	repo, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Shutdown() })

	el := newEventLog()
	require.True(t, st.AddListener(el.l))
	return repo, el
}
