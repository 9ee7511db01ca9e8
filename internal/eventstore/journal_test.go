package eventstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	"git.home.luguber.info/inful/pkgrepo/internal/repository"
	"git.home.luguber.info/inful/pkgrepo/internal/store"
	helpers "git.home.luguber.info/inful/pkgrepo/internal/testutil/testutils"
)

func TestJournal_RecordsNotifications(t *testing.T) {
	st := newTestStore(t)
	j := NewJournal(st, "", "modules", "/repo", nil)
	require.NotEmpty(t, j.SessionID())

	ctx := t.Context()
	d := descriptor.Descriptor{Name: "core", Version: semver.MustParse("1.0.0"), Location: "/repo/core.jar", Checksum: "abc"}
	require.NoError(t, j.Start(ctx))
	require.NoError(t, j.OnPackageAdded(ctx, d))
	require.NoError(t, j.OnAuxiliaryAdded(ctx, "/repo/x.txt"))
	require.NoError(t, j.OnPackageRemoved(ctx, d))
	require.NoError(t, j.OnAuxiliaryRemoved(ctx, "/repo/x.txt"))
	require.NoError(t, j.Stop(ctx))

	events, err := st.GetBySession(ctx, j.SessionID())
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type())
	}
	assert.Equal(t, []string{
		TypeSessionStarted, TypePackageAdded, TypeAuxiliaryAdded,
		TypePackageRemoved, TypeAuxiliaryRemoved, TypeSessionStopped,
	}, types)

	decoded, ok, err := Decode(events[1])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.EventPackageAdded, decoded.Kind)
	assert.True(t, decoded.Package.SameIdentity(d))
	assert.Equal(t, "abc", decoded.Package.Checksum)
	assert.Equal(t, "modules", events[1].Metadata()["repository"])

	_, ok, err = Decode(events[0])
	require.NoError(t, err)
	assert.False(t, ok, "session events are not notifications")
}

type failingStore struct{ Store }

func (failingStore) Append(context.Context, string, string, []byte, map[string]string) error {
	return errors.New("disk full")
}

func TestJournal_AppendFailureIsReturned(t *testing.T) {
	j := NewJournal(failingStore{}, "s", "modules", "/repo", nil)
	err := j.OnAuxiliaryAdded(t.Context(), "/repo/x")
	require.Error(t, err)
}

func TestRegistryProjection_ReplayMatchesStore(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WritePackage("a.jar", "alpha", "1.0.0").
		WritePackage("b.jar", "beta", "1.0.0").
		WriteFile("notes.txt", "x")

	repo, err := repository.New(repository.Options{
		Name:         "modules",
		Directory:    pd.Path(),
		PollInterval: 5 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Shutdown() })

	st := newTestStore(t)
	j := NewJournal(st, "", repo.Name(), repo.Directory(), nil)
	require.True(t, repo.Store().AddListener(j))

	ctx := t.Context()
	_, err = repo.Load(ctx)
	require.NoError(t, err)

	pd.Remove("a.jar").
		WritePackage("b.jar", "beta", "2.0.0").
		WritePackage("c.jar", "gamma", "0.1.0").
		WriteFile("more.txt", "y").
		Remove("notes.txt")
	_, err = repo.Load(ctx)
	require.NoError(t, err)

	proj := NewRegistryProjection(st, j.SessionID())
	require.NoError(t, proj.Rebuild(ctx))

	want := repo.FindAll()
	got := proj.Packages()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].SameIdentity(got[i]), "%s vs %s", want[i], got[i])
		assert.Equal(t, want[i].Location, got[i].Location)
	}
	assert.Equal(t, repo.Auxiliary(), proj.Auxiliary())
	assert.False(t, proj.LastSyncTime().IsZero())
	assert.Positive(t, proj.Applied())
}

func TestRegistryProjection_IgnoresOtherSessions(t *testing.T) {
	st := newTestStore(t)
	ctx := t.Context()

	mine := NewJournal(st, "mine", "r", "/repo", nil)
	other := NewJournal(st, "other", "r", "/repo", nil)
	require.NoError(t, mine.OnAuxiliaryAdded(ctx, "/repo/a"))
	require.NoError(t, other.OnAuxiliaryAdded(ctx, "/repo/b"))

	proj := NewRegistryProjection(st, "mine")
	require.NoError(t, proj.Rebuild(ctx))
	assert.Equal(t, []string{"/repo/a"}, proj.Auxiliary())

	events, err := st.GetBySession(ctx, "other")
	require.NoError(t, err)
	require.NoError(t, proj.Apply(events[0]))
	assert.Equal(t, []string{"/repo/a"}, proj.Auxiliary())
}
