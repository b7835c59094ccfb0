package version

import (
	"fmt"
	"strings"

	pep440 "github.com/aquasecurity/go-pep440-version"
)

// Specifier is a single (operator, version, is_star) constraint.
type Specifier struct {
	raw string
	s   pep440.Specifier
}

// ParseSpecifier parses a single specifier such as ">=1.0" or "==1.2.*".
func ParseSpecifier(s string) (Specifier, error) {
	parsed, err := pep440.NewSpecifier(s)
	if err != nil {
		return Specifier{}, fmt.Errorf("parsing specifier %q: %w", s, err)
	}

	return Specifier{raw: s, s: parsed}, nil
}

// String returns the normalized specifier text.
func (s Specifier) String() string {
	return s.s.String()
}

// IsStar reports whether the specifier carries the ".*" wildcard suffix,
// valid only with "==" and "!=" per spec.md §3.
func (s Specifier) IsStar() bool {
	return strings.Contains(s.raw, ".*")
}

// Check reports whether v satisfies this specifier.
func (s Specifier) Check(v Version) bool {
	return s.s.Check(v.v)
}

// SpecifierSet is a conjunction of Specifiers; an empty set matches every
// version.
type SpecifierSet struct {
	raw string
	ss  pep440.Specifiers
}

// ParseSpecifierSet parses a comma-separated specifier set, e.g. ">=1.0,<2.0".
func ParseSpecifierSet(s string) (SpecifierSet, error) {
	if strings.TrimSpace(s) == "" {
		empty, _ := pep440.NewSpecifiers("")

		return SpecifierSet{raw: s, ss: empty}, nil
	}

	parsed, err := pep440.NewSpecifiers(s)
	if err != nil {
		return SpecifierSet{}, fmt.Errorf("parsing specifier set %q: %w", s, err)
	}

	return SpecifierSet{raw: s, ss: parsed}, nil
}

// String returns the normalized specifier-set text.
func (ss SpecifierSet) String() string {
	return ss.ss.String()
}

// Check reports whether v satisfies every member of the set.
func (ss SpecifierSet) Check(v Version) bool {
	return ss.ss.Check(v.v)
}

// Raw returns the original specifier-set text, for callers (such as
// pyfind's PATH pre-filter) that need to inspect it without a full parse.
func (ss SpecifierSet) Raw() string {
	return ss.raw
}

// IsEmpty reports whether the set carries no constraints at all.
func (ss SpecifierSet) IsEmpty() bool {
	return strings.TrimSpace(ss.raw) == ""
}

// AllowsPrereleases reports whether any member specifier is itself a
// pre-release, which per spec.md §4.A opts the whole set into matching
// pre-release candidates in ordered comparisons.
func (ss SpecifierSet) AllowsPrereleases() bool {
	for _, part := range strings.Split(ss.raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		v, err := extractSpecifierVersion(part)
		if err != nil {
			continue
		}

		if v.IsPreRelease() {
			return true
		}
	}

	return false
}

// extractSpecifierVersion pulls the version portion out of a single
// specifier string by stripping its leading operator characters.
func extractSpecifierVersion(spec string) (Version, error) {
	i := strings.IndexFunc(spec, func(r rune) bool {
		return !strings.ContainsRune("><=!~", r)
	})
	if i < 0 {
		return Version{}, fmt.Errorf("no version in specifier %q", spec)
	}

	return Parse(strings.TrimSuffix(strings.TrimSpace(spec[i:]), ".*"))
}

// PreReleaseKind is the closed enum of pre-release stages.
type PreReleaseKind int

const (
	PreReleaseNone PreReleaseKind = iota
	PreReleaseAlpha
	PreReleaseBeta
	PreReleaseRC
)

// ParsePreReleaseKind maps the case-insensitive aliases of spec.md §3:
// {a,alpha}->Alpha, {b,beta}->Beta, {c,rc,pre,preview}->Rc.
func ParsePreReleaseKind(s string) (PreReleaseKind, error) {
	switch strings.ToLower(s) {
	case "a", "alpha":
		return PreReleaseAlpha, nil
	case "b", "beta":
		return PreReleaseBeta, nil
	case "c", "rc", "pre", "preview":
		return PreReleaseRC, nil
	default:
		return PreReleaseNone, fmt.Errorf("unknown pre-release kind %q", s)
	}
}

func (k PreReleaseKind) String() string {
	switch k {
	case PreReleaseAlpha:
		return "a"
	case PreReleaseBeta:
		return "b"
	case PreReleaseRC:
		return "rc"
	default:
		return ""
	}
}
