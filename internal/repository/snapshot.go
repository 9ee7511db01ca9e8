package repository

import "git.home.luguber.info/inful/pkgrepo/internal/descriptor"

// Snapshot is the candidate state produced by one scan: packages keyed by
// name and auxiliary locations, both in first-seen order.
type Snapshot struct {
	packages  []descriptor.Descriptor
	byName    map[string]int
	auxiliary []string
	auxSet    map[string]struct{}
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		byName: make(map[string]int),
		auxSet: make(map[string]struct{}),
	}
}

// AddPackage records d. When a package with the same name is already
// present it is replaced in place and returned with replaced=true.
func (s *Snapshot) AddPackage(d descriptor.Descriptor) (prev descriptor.Descriptor, replaced bool) {
	if i, ok := s.byName[d.Name]; ok {
		prev = s.packages[i]
		s.packages[i] = d
		return prev, true
	}
	s.byName[d.Name] = len(s.packages)
	s.packages = append(s.packages, d)
	return descriptor.Descriptor{}, false
}

// AddAuxiliary records a location and reports whether it was new.
func (s *Snapshot) AddAuxiliary(location string) bool {
	if _, ok := s.auxSet[location]; ok {
		return false
	}
	s.auxSet[location] = struct{}{}
	s.auxiliary = append(s.auxiliary, location)
	return true
}

// Packages returns the candidate packages in scan order.
func (s *Snapshot) Packages() []descriptor.Descriptor {
	return append([]descriptor.Descriptor(nil), s.packages...)
}

// Package looks up a candidate by name.
func (s *Snapshot) Package(name string) (descriptor.Descriptor, bool) {
	i, ok := s.byName[name]
	if !ok {
		return descriptor.Descriptor{}, false
	}
	return s.packages[i], true
}

// Auxiliary returns the candidate auxiliary locations in scan order.
func (s *Snapshot) Auxiliary() []string {
	return append([]string(nil), s.auxiliary...)
}

// HasAuxiliary reports whether location is a candidate auxiliary file.
func (s *Snapshot) HasAuxiliary(location string) bool {
	_, ok := s.auxSet[location]
	return ok
}

// Len returns the number of candidate packages and auxiliary locations.
func (s *Snapshot) Len() (packages, auxiliary int) {
	return len(s.packages), len(s.auxiliary)
}
