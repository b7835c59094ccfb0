// Package config holds the explicit configuration records spec.md §9
// calls for in place of a boolean/option soup: BuildPolicy, LinkMode,
// PythonPreference, EnvironmentPreference, HashPolicy. Defaults are
// constants on each type, following the teacher's functional-options
// constructor convention elsewhere in this module.
package config

// PythonPreference controls which interpreter sources are admissible and
// their relative ordering, per spec.md §3/§4.C.
type PythonPreference int

const (
	// PreferenceManaged is the default: managed installations are tried
	// before system interpreters, but both are eligible.
	PreferenceManaged PythonPreference = iota
	PreferenceOnlyManaged
	PreferenceSystem
	PreferenceOnlySystem
)

// ParsePythonPreference parses the CLI spelling of a PythonPreference.
func ParsePythonPreference(s string) (PythonPreference, error) {
	switch s {
	case "", "managed":
		return PreferenceManaged, nil
	case "only-managed":
		return PreferenceOnlyManaged, nil
	case "system":
		return PreferenceSystem, nil
	case "only-system":
		return PreferenceOnlySystem, nil
	default:
		return 0, errUnknownValue("python-preference", s)
	}
}

// EnvironmentPreference controls whether virtual or system environments
// are preferred/admitted during interpreter discovery.
type EnvironmentPreference int

const (
	// EnvironmentOnlyVirtual is the default: only virtual environments
	// are considered unless the request is explicit about a system path.
	EnvironmentOnlyVirtual EnvironmentPreference = iota
	EnvironmentExplicitSystem
	EnvironmentOnlySystem
	EnvironmentAny
)

// BuildPolicy controls whether wheels may be downloaded, built from
// source, or neither, per package or globally.
type BuildPolicy struct {
	// Mode selects the overall strategy.
	Mode BuildMode
	// Packages lists the names BuildMode applies to; empty means "all"
	// when Mode is OnlyBinary/NoBinary/NoBuild, consistent with pip's
	// ":all:" sentinel.
	Packages []string
}

// BuildMode is the closed enum backing BuildPolicy.
type BuildMode int

const (
	// BuildAllow is the default: both wheels and source builds are
	// permitted.
	BuildAllow BuildMode = iota
	BuildOnlyBinary
	BuildNoBinary
	BuildNoBuild
)

// AllowsBinary reports whether a compatible wheel may be used for name.
func (p BuildPolicy) AllowsBinary(name string) bool {
	if p.Mode != BuildNoBinary {
		return true
	}

	return !p.appliesTo(name)
}

// AllowsBuild reports whether a source distribution may be built for name.
func (p BuildPolicy) AllowsBuild(name string) bool {
	switch p.Mode {
	case BuildOnlyBinary, BuildNoBuild:
		return !p.appliesTo(name)
	default:
		return true
	}
}

func (p BuildPolicy) appliesTo(name string) bool {
	if len(p.Packages) == 0 {
		return true // ":all:"
	}

	for _, n := range p.Packages {
		if n == name {
			return true
		}
	}

	return false
}

// LinkMode selects how a prepared wheel's files are placed into
// site-packages.
type LinkMode int

const (
	// LinkClone is the default (ParseLinkMode maps an empty string to
	// it). No package reads LinkMode: the installer always writes
	// extracted files as regular copies.
	LinkClone LinkMode = iota
	LinkCopy
	LinkHardlink
	LinkSymlink
)

// ParseLinkMode parses the CLI spelling of a LinkMode.
func ParseLinkMode(s string) (LinkMode, error) {
	switch s {
	case "", "clone":
		return LinkClone, nil
	case "copy":
		return LinkCopy, nil
	case "hardlink":
		return LinkHardlink, nil
	case "symlink":
		return LinkSymlink, nil
	default:
		return 0, errUnknownValue("link-mode", s)
	}
}

// HashPolicy controls whether --require-hashes mode is active, per
// spec.md §4.E.
type HashPolicy struct {
	RequireHashes bool
}

func errUnknownValue(field, value string) error {
	return &unknownValueError{field: field, value: value}
}

type unknownValueError struct {
	field, value string
}

func (e *unknownValueError) Error() string {
	return "unknown value " + e.value + " for " + e.field
}
