package descriptor

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/pkgrepo/internal/foundation/errors"
)

// Manifest is the YAML document stored inside a package archive.
type Manifest struct {
	Name        string            `yaml:"name"`
	Version     string            `yaml:"version"`
	Description string            `yaml:"description,omitempty"`
	Requires    []string          `yaml:"requires,omitempty"`
	Attributes  map[string]string `yaml:"attributes,omitempty"`
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (Manifest, *semver.Version, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, nil, ferrors.WrapError(err, ferrors.CategoryInspector, "malformed package manifest").
			Warning().
			Build()
	}
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return Manifest{}, nil, ferrors.InspectorError("package manifest has no name").Build()
	}
	if strings.TrimSpace(m.Version) == "" {
		return Manifest{}, nil, ferrors.InspectorError("package manifest has no version").
			WithContext("package", m.Name).
			Build()
	}
	v, err := semver.NewVersion(strings.TrimSpace(m.Version))
	if err != nil {
		return Manifest{}, nil, ferrors.WrapError(err, ferrors.CategoryInspector, "invalid package version").
			Warning().
			WithContext("package", m.Name).
			WithContext("version", m.Version).
			Build()
	}
	return m, v, nil
}
