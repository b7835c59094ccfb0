// Package version wraps github.com/aquasecurity/go-pep440-version with the
// richer vocabulary spec.md §4.A needs: star specifiers, prerelease kinds,
// and an interpreter-oriented VersionRequest distinct from package
// Specifiers.
package version

import (
	"fmt"
	"sort"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Version is a parsed, immutable PEP 440 version.
type Version struct {
	raw string
	v   pep440.Version
}

// Parse parses s as a PEP 440 version, accepting the legacy and
// non-normalized forms (leading "v", surrounding whitespace, alternate
// pre-release spellings) that go-pep440-version already tolerates.
func Parse(s string) (Version, error) {
	v, err := pep440.Parse(s)
	if err != nil {
		return Version{}, fmt.Errorf("parsing version %q: %w", s, err)
	}

	return Version{raw: s, v: v}, nil
}

// MustParse parses s and panics on error. Intended for constants in tests
// and call sites that already validated s.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}

	return v
}

// String returns the normalized display form.
func (v Version) String() string {
	return v.v.String()
}

// IsPreRelease reports whether v carries an alpha/beta/rc component.
func (v Version) IsPreRelease() bool {
	return v.v.IsPreRelease()
}

// Compare returns -1, 0, or 1 comparing v to other under the total order
// of spec.md §4.A (epoch, release, pre/post/dev stage, local label).
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// Equal compares normalized equality (trailing release zeros ignored).
func (v Version) Equal(other Version) bool {
	return v.v.Equal(other.v)
}

// ArbitraryEqual compares the verbatim input strings, bypassing
// normalization, matching the "===" operator's semantics.
func (v Version) ArbitraryEqual(other Version) bool {
	return strings.TrimSpace(v.raw) == strings.TrimSpace(other.raw)
}

// GreaterThan reports whether v orders strictly after other.
func (v Version) GreaterThan(other Version) bool {
	return v.v.GreaterThan(other.v)
}

// LessThan reports whether v orders strictly before other.
func (v Version) LessThan(other Version) bool {
	return v.v.LessThan(other.v)
}

// Sort sorts versions ascending in place.
func Sort(versions []Version) {
	sort.Slice(versions, func(i, j int) bool { return versions[i].LessThan(versions[j]) })
}

// SortDesc sorts versions descending in place.
func SortDesc(versions []Version) {
	sort.Slice(versions, func(i, j int) bool { return versions[i].GreaterThan(versions[j]) })
}
