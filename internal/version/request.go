package version

import "fmt"

// RequestVariant distinguishes a standard interpreter build from a
// free-threaded (GIL-disabled) one, per spec.md §3.
type RequestVariant int

const (
	VariantDefault RequestVariant = iota
	VariantFreethreaded
)

// RequestKind tags the shape of a VersionRequest.
type RequestKind int

const (
	RequestAny RequestKind = iota
	RequestDefault
	RequestMajor
	RequestMajorMinor
	RequestMajorMinorPatch
	RequestMajorMinorPrerelease
	RequestRange
)

// Request is the tagged-variant interpreter version request of spec.md §3.
// Unlike Specifier/SpecifierSet, a Request describes what *interpreter* is
// acceptable, not what *package* version is acceptable.
type Request struct {
	Kind    RequestKind
	Major   int
	Minor   int
	Patch   int
	Pre     PreReleaseKind
	PreNum  int
	Range   SpecifierSet
	Variant RequestVariant
}

// Any accepts any stable or pre-release interpreter of any implementation.
func Any() Request { return Request{Kind: RequestAny} }

// Default accepts any stable interpreter acceptable as the default choice.
func Default() Request { return Request{Kind: RequestDefault} }

// Major requests an interpreter with the given major version.
func Major(major int, variant RequestVariant) Request {
	return Request{Kind: RequestMajor, Major: major, Variant: variant}
}

// MajorMinor requests an interpreter with the given major.minor version.
func MajorMinor(major, minor int, variant RequestVariant) Request {
	return Request{Kind: RequestMajorMinor, Major: major, Minor: minor, Variant: variant}
}

// MajorMinorPatch requests an exact major.minor.patch version.
func MajorMinorPatch(major, minor, patch int, variant RequestVariant) Request {
	return Request{Kind: RequestMajorMinorPatch, Major: major, Minor: minor, Patch: patch, Variant: variant}
}

// MajorMinorPrerelease requests a major.minor version at a specific
// pre-release stage.
func MajorMinorPrerelease(major, minor int, pre PreReleaseKind, preNum int, variant RequestVariant) Request {
	return Request{
		Kind: RequestMajorMinorPrerelease, Major: major, Minor: minor,
		Pre: pre, PreNum: preNum, Variant: variant,
	}
}

// Range requests any interpreter version satisfying the given specifier set.
func Range(ss SpecifierSet, variant RequestVariant) Request {
	return Request{Kind: RequestRange, Range: ss, Variant: variant}
}

// AllowsPrerelease reports whether this request's shape inherently permits
// pre-release interpreters (spec.md §4.C: "Pre-releases ... are suppressed
// unless the request ... permits them").
func (r Request) AllowsPrerelease() bool {
	switch r.Kind {
	case RequestAny, RequestMajorMinorPrerelease:
		return true
	case RequestRange:
		return r.Range.AllowsPrereleases()
	default:
		return false
	}
}

// Relaxed returns a MajorMinor request derived from a MajorMinorPatch
// request, used by the second discovery pass in spec.md §4.C. ok is false
// when r does not carry a patch component to relax.
func (r Request) Relaxed() (Request, bool) {
	if r.Kind != RequestMajorMinorPatch {
		return Request{}, false
	}

	return MajorMinor(r.Major, r.Minor, r.Variant), true
}

// Matches reports whether the interpreter version (major, minor, patch,
// pre-release) and variant satisfy this request, per the
// matches_interpreter check of spec.md §4.C.
func (r Request) Matches(major, minor, patch int, pre PreReleaseKind, preNum int, variant RequestVariant) bool {
	if r.Variant != variant {
		return false
	}

	switch r.Kind {
	case RequestAny, RequestDefault:
		return pre == PreReleaseNone || r.AllowsPrerelease()
	case RequestMajor:
		return major == r.Major && (pre == PreReleaseNone || r.AllowsPrerelease())
	case RequestMajorMinor:
		return major == r.Major && minor == r.Minor && (pre == PreReleaseNone || r.AllowsPrerelease())
	case RequestMajorMinorPatch:
		return major == r.Major && minor == r.Minor && patch == r.Patch
	case RequestMajorMinorPrerelease:
		return major == r.Major && minor == r.Minor && pre == r.Pre && preNum == r.PreNum
	case RequestRange:
		v, err := Parse(fmt.Sprintf("%d.%d.%d", major, minor, patch))
		if err != nil {
			return false
		}

		if pre != PreReleaseNone && !r.AllowsPrerelease() {
			return false
		}

		return r.Range.Check(v)
	default:
		return false
	}
}

func (v RequestVariant) String() string {
	if v == VariantFreethreaded {
		return "freethreaded"
	}

	return "default"
}
