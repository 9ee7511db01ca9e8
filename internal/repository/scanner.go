package repository

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pkgrepo/internal/descriptor"
	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
	"git.home.luguber.info/inful/pkgrepo/internal/foundation/normalization"
	"git.home.luguber.info/inful/pkgrepo/internal/logfields"
)

// DisabledSuffix marks a sibling file that hides an entry from scans.
const DisabledSuffix = ".disabled"

// DuplicatePolicy decides what a scan does when two entries declare the
// same package name.
type DuplicatePolicy string

const (
	// DuplicatesLastWins keeps the lexically last entry and logs a warning.
	DuplicatesLastWins DuplicatePolicy = "last_wins"
	// DuplicatesError fails the scan.
	DuplicatesError DuplicatePolicy = "error"
)

var duplicatePolicies = normalization.NewNormalizer(map[string]DuplicatePolicy{
	"last_wins": DuplicatesLastWins,
	"last-wins": DuplicatesLastWins,
	"error":     DuplicatesError,
}, DuplicatesLastWins)

// ParseDuplicatePolicy parses a policy name; empty input selects last_wins.
func ParseDuplicatePolicy(raw string) (DuplicatePolicy, error) {
	p, err := duplicatePolicies.Parse("duplicates policy", raw)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "invalid duplicates policy").
			WithContext("field", "duplicates").
			Build()
	}
	return p, nil
}

// DisabledMarker returns the marker name that disables entry: the name up
// to its last extension plus ".disabled".
func DisabledMarker(entry string) string {
	return entry[:len(entry)-len(filepath.Ext(entry))] + DisabledSuffix
}

// Scanner produces candidate snapshots of one directory.
type Scanner struct {
	dir        string
	inspector  descriptor.Inspector
	duplicates DuplicatePolicy
	filter     *EntryFilter
	logger     *slog.Logger
}

// NewScanner creates a scanner for dir. dir is made absolute so every
// reported location is absolute.
func NewScanner(dir string, inspector descriptor.Inspector, duplicates DuplicatePolicy, filter *EntryFilter, logger *slog.Logger) (*Scanner, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid package directory").
			WithContext("directory", dir).
			Build()
	}
	if inspector == nil {
		return nil, ferrors.ValidationError("inspector is required").Build()
	}
	if duplicates == "" {
		duplicates = DuplicatesLastWins
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		dir:        abs,
		inspector:  inspector,
		duplicates: duplicates,
		filter:     filter,
		logger:     logger,
	}, nil
}

// Dir returns the absolute directory path.
func (s *Scanner) Dir() string { return s.dir }

// Stat returns the directory's file info, classifying a missing directory
// as not found.
func (s *Scanner) Stat() (fs.FileInfo, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return nil, s.classify(err, "failed to stat package directory")
	}
	if !info.IsDir() {
		return nil, ferrors.FileSystemError("package path is not a directory").
			WithContext("directory", s.dir).
			Build()
	}
	return info, nil
}

// Scan lists the directory and classifies every eligible entry. Entries are
// visited in lexical order. A failed scan returns no snapshot.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	if _, err := s.Stat(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, s.classify(err, "failed to list package directory")
	}

	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.Name()] = struct{}{}
	}

	snap := NewSnapshot()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if filepath.Ext(name) == DisabledSuffix {
			continue
		}
		if _, disabled := present[DisabledMarker(name)]; disabled {
			s.logger.Debug("Skipping disabled entry", logfields.Path(name))
			continue
		}
		if ok, pattern := s.filter.Include(name); !ok {
			s.logger.Debug("Skipping ignored entry", logfields.Path(name), slog.String("pattern", pattern))
			continue
		}

		path := filepath.Join(s.dir, name)
		isDir, err := s.isDir(e, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, s.classify(err, "failed to stat entry")
		}
		if isDir {
			continue
		}

		if err := s.classifyEntry(ctx, snap, path); err != nil {
			return nil, err
		}
	}
	return snap, nil
}

func (s *Scanner) classifyEntry(ctx context.Context, snap *Snapshot, path string) error {
	d, ok, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		switch {
		case ferrors.HasCategory(err, ferrors.CategoryInspector):
			s.logger.Debug("Entry not recognized as package", logfields.Path(path), logfields.Error(err))
			ok = false
		case errors.Is(err, fs.ErrNotExist):
			// Removed between listing and inspection.
			return nil
		default:
			return s.withDirectory(err)
		}
	}
	if !ok {
		snap.AddAuxiliary(path)
		return nil
	}

	if existing, dup := snap.Package(d.Name); dup {
		if s.duplicates == DuplicatesError {
			return ferrors.NewError(ferrors.CategoryValidation, "duplicate package name in directory").
				NextTick().
				WithContext("directory", s.dir).
				WithContext("package", d.Name).
				WithContext("path", path).
				WithContext("previous", existing.Location).
				Build()
		}
		s.logger.Warn("Duplicate package name, keeping last entry",
			logfields.Package(d.Name),
			logfields.Path(path),
			slog.String("replaced", existing.Location))
	}
	snap.AddPackage(d)
	return nil
}

func (s *Scanner) isDir(e fs.DirEntry, path string) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

func (s *Scanner) classify(err error, message string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryNotFound, "package directory not found").
			NextTick().
			WithContext("directory", s.dir).
			Build()
	}
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, message).
		NextTick().
		WithContext("directory", s.dir).
		Build()
}

func (s *Scanner) withDirectory(err error) error {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.WithContext("directory", s.dir)
	}
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to inspect entry").
		NextTick().
		WithContext("directory", s.dir).
		Build()
}
