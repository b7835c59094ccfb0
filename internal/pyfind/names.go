package pyfind

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/bilusteknoloji/pymodule/internal/version"
)

// pythonNameRe matches "python3.X" or "python3.Xt" filenames during a PATH
// scan. The regex itself accepts any minor: minorFromFilename applies the
// minor >= 7 bound per spec.md §4.C, and inMinorWindow keeps interpreters
// outside a requested minor window from ever being queried.
var pythonNameRe = regexp.MustCompile(`^python3\.([0-9]+)(t)?$`)

// minorFromFilename extracts the minor version encoded in a scanned PATH
// filename, and whether it names a free-threaded build. ok is false for
// names that don't match the pattern or whose minor is below 7.
func minorFromFilename(name string) (minor int, freethreaded bool, ok bool) {
	m := pythonNameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false, false
	}

	minor, err := strconv.Atoi(m[1])
	if err != nil || minor < 7 {
		return 0, false, false
	}

	return minor, m[2] == "t", true
}

// inMinorWindow reports whether a scanned minor version could possibly
// satisfy req, used to skip querying candidates that can't match before
// ever spawning a subprocess (spec.md §8 scenario 6).
func inMinorWindow(req version.Request, major, minor int) bool {
	switch req.Kind {
	case version.RequestMajor:
		return major == req.Major
	case version.RequestMajorMinor, version.RequestMajorMinorPatch, version.RequestMajorMinorPrerelease:
		return major == req.Major && minor == req.Minor
	case version.RequestRange:
		lowerMajor, lowerMinor, ok := rangeLowerBound(req.Range.Raw())
		if !ok || lowerMajor != major {
			// No extractable lower bound, or the range targets a
			// different major entirely: admit and let Matches() decide.
			return true
		}

		return minor >= lowerMinor
	default:
		return true
	}
}

// lowerBoundRe extracts a ">=X.Y" or "==X.Y" lower bound from a raw
// specifier-set string, used to pre-filter PATH scan candidates before
// ever querying them (spec.md §4.C, §8 scenario 6).
var lowerBoundRe = regexp.MustCompile(`(?:>=|==|~=)\s*([0-9]+)\.([0-9]+)`)

func rangeLowerBound(raw string) (major, minor int, ok bool) {
	m := lowerBoundRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}

	major, err1 := strconv.Atoi(m[1])
	minor, err2 := strconv.Atoi(m[2])

	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return major, minor, true
}

// executableNames produces the priority-ordered list of filenames to look
// for on PATH for a given request, per spec.md §4.C's "Executable-name
// ranking". More specific names (carrying the implementation and full
// version) are favored when an implementation is requested; generic
// names are favored for Default/Any.
func executableNames(req Request) []string {
	suffix := ""
	if req.Version.Variant == version.VariantFreethreaded {
		suffix = "t"
	}

	switch req.Kind {
	case RequestExecutableName:
		return []string{req.ExecutableName}
	case RequestImplementation:
		return implementationNames(req.Implementation, suffix)
	case RequestImplementationVersion:
		return append(versionedNames(req.Implementation, req.Version, suffix), implementationNames(req.Implementation, suffix)...)
	case RequestVersion:
		names := versionedNames(CPython, req.Version, suffix)

		return append(names, genericNames(suffix)...)
	default:
		return genericNames(suffix)
	}
}

func genericNames(suffix string) []string {
	return []string{"python3" + suffix, "python" + suffix}
}

func implementationNames(impl Implementation, suffix string) []string {
	switch impl {
	case PyPy:
		return []string{"pypy3" + suffix, "pypy" + suffix}
	case GraalPy:
		return []string{"graalpy" + suffix}
	default:
		return genericNames(suffix)
	}
}

func versionedNames(impl Implementation, req version.Request, suffix string) []string {
	var names []string

	prefix := "python"
	if impl == PyPy {
		prefix = "pypy"
	} else if impl == GraalPy {
		prefix = "graalpy"
	}

	switch req.Kind {
	case version.RequestMajorMinorPatch:
		names = append(names, fmt.Sprintf("%s%d.%d.%d%s", prefix, req.Major, req.Minor, req.Patch, suffix))
		names = append(names, fmt.Sprintf("%s%d.%d%s", prefix, req.Major, req.Minor, suffix))
	case version.RequestMajorMinor, version.RequestMajorMinorPrerelease:
		names = append(names, fmt.Sprintf("%s%d.%d%s", prefix, req.Major, req.Minor, suffix))
	case version.RequestMajor:
		names = append(names, fmt.Sprintf("%s%d%s", prefix, req.Major, suffix))
	}

	return names
}
