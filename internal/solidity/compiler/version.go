// Package compiler manages the set of installable solc binaries: discovery,
// download, on-disk caching and periodic refresh of the known-version list.
package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Version identifies a single compiler release, e.g. "v0.8.28+commit.7893614a"
// or a nightly build "v0.8.17-nightly.2022.8.9+commit.6b60524c". Immutable once
// parsed; used as the cache key.
type Version struct {
	raw string
}

// ParseVersion validates and canonicalizes a compiler version string. A
// missing "v" prefix is tolerated since compiler release lists publish
// versions both ways.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty compiler version")
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return Version{}, fmt.Errorf("invalid compiler version %q", s)
	}
	return Version{raw: s}, nil
}

// String returns the canonical form, always with a leading "v".
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether v is the zero Version.
func (v Version) IsZero() bool {
	return v.raw == ""
}

// Compare orders versions semantically. Build metadata (the "+commit.*"
// suffix) is ignored, which is fine for latest-version bookkeeping; explicit
// lookups always go through the exact string key.
func (v Version) Compare(other Version) int {
	return semver.Compare(v.raw, other.raw)
}
