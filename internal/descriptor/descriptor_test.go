package descriptor

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
)

func TestDescriptor_Identity(t *testing.T) {
	v1 := semver.MustParse("1.0.0")
	v1b := semver.MustParse("1.0")
	v2 := semver.MustParse("2.0.0")

	a := Descriptor{Name: "core", Version: v1, Location: "/a"}
	b := Descriptor{Name: "core", Version: v1b, Location: "/b"}
	c := Descriptor{Name: "core", Version: v2, Location: "/a"}

	assert.True(t, a.SameIdentity(b), "1.0 and 1.0.0 are the same version")
	assert.False(t, a.SameIdentity(c))
	assert.False(t, a.SameIdentity(Descriptor{Name: "other", Version: v1}))

	assert.True(t, Descriptor{Name: "x"}.HasVersion(nil))
	assert.False(t, a.HasVersion(nil))
}

func TestDescriptor_String(t *testing.T) {
	assert.Equal(t, "core@1.2.3", Descriptor{Name: "core", Version: semver.MustParse("1.2.3")}.String())
	assert.Equal(t, "core", Descriptor{Name: "core"}.String())
	assert.Empty(t, Descriptor{}.VersionString())
	assert.True(t, Descriptor{}.IsZero())
}
