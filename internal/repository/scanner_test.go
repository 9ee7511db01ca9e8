package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	helpers "git.home.luguber.info/inful/pkgrepo/internal/testutil/testutils"
)

func newTestScanner(t *testing.T, dir string, inspector descriptor.Inspector, policy DuplicatePolicy, ignore ...string) *Scanner {
	t.Helper()
	if inspector == nil {
		inspector = descriptor.NewArchiveInspector()
	}
	filter, err := NewEntryFilter(ignore)
	require.NoError(t, err)
	s, err := NewScanner(dir, inspector, policy, filter, quietLogger())
	require.NoError(t, err)
	return s
}

func names(ds []descriptor.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func TestScanner_ClassifiesEntriesInLexicalOrder(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WritePackage("b.jar", "beta", "1.0.0").
		WritePackage("a.jar", "alpha", "1.0.0").
		WriteFile("notes.txt", "hello").
		Mkdir("nested")

	snap, err := newTestScanner(t, pd.Path(), nil, "").Scan(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "beta"}, names(snap.Packages()))
	assert.Equal(t, []string{pd.File("notes.txt")}, snap.Auxiliary())

	d, ok := snap.Package("alpha")
	require.True(t, ok)
	assert.Equal(t, pd.File("a.jar"), d.Location)
}

func TestScanner_DisabledEntries(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WritePackage("core.jar", "core", "1.0.0").
		WritePackage("api.jar", "api", "1.0.0").
		WriteFile("readme", "x").
		Disable("core.jar").
		Disable("readme")

	snap, err := newTestScanner(t, pd.Path(), nil, "").Scan(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"api"}, names(snap.Packages()))
	assert.Empty(t, snap.Auxiliary(), "markers are never reported and readme is disabled")
	assert.FileExists(t, pd.File("core.jar"))
}

func TestScanner_IgnorePatterns(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WritePackage("core.jar", "core", "1.0.0").
		WriteFile("core.jar.part", "partial").
		WriteFile(".hidden", "x")

	snap, err := newTestScanner(t, pd.Path(), nil, "", "*.part", ".*").Scan(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, names(snap.Packages()))
	assert.Empty(t, snap.Auxiliary())
}

func TestScanner_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "absent")
	snap, err := newTestScanner(t, dir, nil, "").Scan(t.Context())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	got, _ := ce.Context().GetString("directory")
	assert.Equal(t, dir, got)
	assert.True(t, ce.CanRetry())
}

func TestScanner_PathIsFile(t *testing.T) {
	pd := helpers.NewPackageDir(t).WriteFile("plain", "x")
	_, err := newTestScanner(t, pd.File("plain"), nil, "").Scan(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestScanner_InspectorErrorDegradesToAuxiliary(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WriteArchive("broken.jar", map[string]string{"package.yaml": "name: [oops\n"}).
		WritePackage("good.jar", "good", "1.0.0")

	snap, err := newTestScanner(t, pd.Path(), nil, "").Scan(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, names(snap.Packages()))
	assert.Equal(t, []string{pd.File("broken.jar")}, snap.Auxiliary())
}

func TestScanner_IOErrorAbortsScan(t *testing.T) {
	pd := helpers.NewPackageDir(t).WriteFile("a.bin", "x")
	failing := descriptor.InspectorFunc(func(context.Context, string) (descriptor.Descriptor, bool, error) {
		return descriptor.Descriptor{}, false, errors.New("read failed")
	})

	snap, err := newTestScanner(t, pd.Path(), failing, "").Scan(t.Context())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	got, _ := ce.Context().GetString("directory")
	assert.Equal(t, pd.Path(), got)
}

func TestScanner_DuplicateNames(t *testing.T) {
	pd := helpers.NewPackageDir(t).
		WritePackage("core-1.jar", "core", "1.0.0").
		WritePackage("api.jar", "api", "1.0.0").
		WritePackage("core-2.jar", "core", "2.0.0")

	t.Run("last wins keeps first position", func(t *testing.T) {
		snap, err := newTestScanner(t, pd.Path(), nil, DuplicatesLastWins).Scan(t.Context())
		require.NoError(t, err)
		assert.Equal(t, []string{"api", "core"}, names(snap.Packages()))
		d, _ := snap.Package("core")
		assert.Equal(t, "2.0.0", d.VersionString())
		assert.Equal(t, pd.File("core-2.jar"), d.Location)
	})

	t.Run("error policy fails the scan", func(t *testing.T) {
		_, err := newTestScanner(t, pd.Path(), nil, DuplicatesError).Scan(t.Context())
		require.Error(t, err)
		assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	})
}

func TestScanner_CanceledContext(t *testing.T) {
	pd := helpers.NewPackageDir(t).WritePackage("a.jar", "a", "1.0.0")
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := newTestScanner(t, pd.Path(), nil, "").Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDisabledMarker(t *testing.T) {
	assert.Equal(t, "core.disabled", DisabledMarker("core.jar"))
	assert.Equal(t, "core.1.disabled", DisabledMarker("core.1.zip"))
	assert.Equal(t, "readme.disabled", DisabledMarker("readme"))
}

func TestParseDuplicatePolicy(t *testing.T) {
	p, err := ParseDuplicatePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DuplicatesLastWins, p)

	p, err = ParseDuplicatePolicy(" ERROR ")
	require.NoError(t, err)
	assert.Equal(t, DuplicatesError, p)

	_, err = ParseDuplicatePolicy("first_wins")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestEntryFilter(t *testing.T) {
	_, err := NewEntryFilter([]string{"[bad"})
	require.Error(t, err)

	f, err := NewEntryFilter([]string{" ", "*.tmp"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.tmp"}, f.Patterns())

	ok, pattern := f.Include("x.tmp")
	assert.False(t, ok)
	assert.Equal(t, "*.tmp", pattern)

	ok, _ = f.Include("x.jar")
	assert.True(t, ok)

	var nilFilter *EntryFilter
	ok, _ = nilFilter.Include("anything")
	assert.True(t, ok)
}
