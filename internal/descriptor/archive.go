package descriptor

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// DefaultManifestPaths are the archive entries searched for a manifest, in order.
var DefaultManifestPaths = []string{"META-INF/package.yaml", "package.yaml"}

const defaultMaxManifestSize = 64 << 10

// ArchiveInspector recognizes zip archives that carry a package manifest,
// whatever their file extension.
type ArchiveInspector struct {
	ManifestPaths   []string
	MaxManifestSize int64
}

// NewArchiveInspector returns an inspector using the default manifest locations.
func NewArchiveInspector() *ArchiveInspector {
	return &ArchiveInspector{
		ManifestPaths:   DefaultManifestPaths,
		MaxManifestSize: defaultMaxManifestSize,
	}
}

// Inspect implements Inspector.
func (i *ArchiveInspector) Inspect(ctx context.Context, path string) (Descriptor, bool, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, false, err
	}

	// #nosec G304 - path comes from the watched directory listing
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open entry").
			NextTick().
			WithContext("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return Descriptor{}, false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to stat entry").
			NextTick().
			WithContext("path", path).
			Build()
	}
	if info.IsDir() {
		return Descriptor{}, false, nil
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		if isFormatError(err) {
			return Descriptor{}, false, nil
		}
		return Descriptor{}, false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read entry").
			NextTick().
			WithContext("path", path).
			Build()
	}

	entry := i.findManifest(zr)
	if entry == nil {
		return Descriptor{}, false, nil
	}

	data, err := i.readManifest(entry)
	if err != nil {
		return Descriptor{}, false, ferrors.WrapError(err, ferrors.CategoryInspector, "unreadable package manifest").
			Warning().
			WithContext("path", path).
			Build()
	}

	m, version, err := ParseManifest(data)
	if err != nil {
		if c, ok := ferrors.AsClassified(err); ok {
			return Descriptor{}, false, c.WithContext("path", path)
		}
		return Descriptor{}, false, err
	}

	sum, err := checksum(f)
	if err != nil {
		return Descriptor{}, false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to checksum entry").
			NextTick().
			WithContext("path", path).
			Build()
	}

	location, err := filepath.Abs(path)
	if err != nil {
		location = path
	}

	return Descriptor{
		Name:        m.Name,
		Version:     version,
		Location:    location,
		Description: m.Description,
		Requires:    m.Requires,
		Attributes:  m.Attributes,
		Checksum:    sum,
	}, true, nil
}

func (i *ArchiveInspector) findManifest(zr *zip.Reader) *zip.File {
	paths := i.ManifestPaths
	if len(paths) == 0 {
		paths = DefaultManifestPaths
	}
	for _, want := range paths {
		for _, f := range zr.File {
			if f.Name == want && !f.FileInfo().IsDir() {
				return f
			}
		}
	}
	return nil
}

func (i *ArchiveInspector) readManifest(entry *zip.File) ([]byte, error) {
	limit := i.MaxManifestSize
	if limit <= 0 {
		limit = defaultMaxManifestSize
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errors.New("manifest exceeds size limit")
	}
	return data, nil
}

func checksum(f *os.File) (string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// isFormatError reports whether err means "not a zip archive" rather than an I/O failure.
// Truncated archives (still being copied) land here too.
func isFormatError(err error) bool {
	return errors.Is(err, zip.ErrFormat) ||
		errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, zip.ErrChecksum) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
