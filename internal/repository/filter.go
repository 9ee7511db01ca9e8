package repository

import (
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// EntryFilter hides directory entries whose names match an ignore glob.
// Ignored entries are neither packages nor auxiliary files. Typical use is
// skipping partial downloads such as "*.part".
type EntryFilter struct {
	patterns []string
}

// NewEntryFilter validates the glob patterns (filepath.Match syntax).
// Blank patterns are dropped.
func NewEntryFilter(patterns []string) (*EntryFilter, error) {
	f := &EntryFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid ignore pattern").
				WithContext("pattern", p).
				Build()
		}
		f.patterns = append(f.patterns, p)
	}
	return f, nil
}

// Include reports whether name passes the filter along with the matching
// pattern when it does not. A nil filter includes everything.
func (f *EntryFilter) Include(name string) (bool, string) {
	if f == nil {
		return true, ""
	}
	for _, p := range f.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return false, p
		}
	}
	return true, ""
}

// Patterns returns the active patterns.
func (f *EntryFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}
