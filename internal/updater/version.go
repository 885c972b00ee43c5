package updater

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is a semantic version. The leading "v" is optional on input.
type Version struct {
	canonical string // vMAJOR.MINOR.PATCH[-pre]
}

// ParseVersion parses "1.2.3", "v1.2.3", "v1.2" or "1.4.0-rc1".
func ParseVersion(s string) (Version, error) {
	v := strings.TrimSpace(s)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	return Version{canonical: semver.Canonical(v)}, nil
}

// MustParseVersion is ParseVersion that panics on error.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version without the leading "v".
func (v Version) String() string {
	return strings.TrimPrefix(v.canonical, "v")
}

// Tag returns the version with the leading "v".
func (v Version) Tag() string {
	return v.canonical
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return v.canonical == ""
}

// Prerelease reports whether v carries a pre-release suffix.
func (v Version) Prerelease() bool {
	return semver.Prerelease(v.canonical) != ""
}

// Compare returns -1, 0 or 1 as v is older, equal or newer than o.
func (v Version) Compare(o Version) int {
	return semver.Compare(v.canonical, o.canonical)
}

// Newer reports whether v is strictly newer than o.
func (v Version) Newer(o Version) bool {
	return v.Compare(o) > 0
}
