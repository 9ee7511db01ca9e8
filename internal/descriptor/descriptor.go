// Package descriptor defines package identity and the inspector capability
// that recognizes package archives on disk.
package descriptor

import (
	"github.com/Masterminds/semver/v3"
)

// Descriptor is the parsed identity and metadata of a package archive.
// Values are treated as immutable once produced by an Inspector; callers
// must not modify Requires or Attributes in place.
type Descriptor struct {
	Name        string
	Version     *semver.Version
	Location    string
	Description string
	Requires    []string
	Attributes  map[string]string
	Checksum    string
}

// VersionString returns the canonical version, or "" when unset.
func (d Descriptor) VersionString() string {
	if d.Version == nil {
		return ""
	}
	return d.Version.String()
}

// HasVersion reports whether d carries the given version. A nil version matches
// only a descriptor without a version.
func (d Descriptor) HasVersion(v *semver.Version) bool {
	if d.Version == nil || v == nil {
		return d.Version == nil && v == nil
	}
	return d.Version.Equal(v)
}

// SameIdentity reports whether both descriptors have the same name and version.
func (d Descriptor) SameIdentity(other Descriptor) bool {
	return d.Name == other.Name && d.HasVersion(other.Version)
}

// IsZero reports whether d is the zero descriptor.
func (d Descriptor) IsZero() bool {
	return d.Name == "" && d.Version == nil && d.Location == ""
}

func (d Descriptor) String() string {
	if d.Version == nil {
		return d.Name
	}
	return d.Name + "@" + d.Version.String()
}
