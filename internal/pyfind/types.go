// Package pyfind implements interpreter discovery and selection per
// spec.md §4.C: a lazy, source-ordered enumeration of candidate Python
// interpreters, filtered by version/implementation/environment
// preference, with a memoized query capability and a three-pass
// best-match search.
//
// It generalizes the teacher's internal/python package, which only
// shells out once to a fixed python binary, into the full discovery
// engine. The CommandRunner/EnvLookup dependency-injection seam is kept
// verbatim from internal/python/env.go so tests substitute a fake
// subprocess instead of shelling out, exactly as env_test.go already does
// for the simpler detector.
package pyfind

import (
	"github.com/bilusteknoloji/pymodule/internal/version"
)

// Source tags the provenance of a discovered interpreter, per spec.md §3.
type Source int

const (
	SourceProvidedPath Source = iota
	SourceActiveEnvironment
	SourceCondaPrefix
	SourceBaseCondaPrefix
	SourceDiscoveredEnvironment
	SourceSearchPath
	SourceSearchPathFirst
	SourceRegistry
	SourceMicrosoftStore
	SourceManaged
	SourceParentInterpreter
)

func (s Source) String() string {
	switch s {
	case SourceProvidedPath:
		return "provided-path"
	case SourceActiveEnvironment:
		return "active-environment"
	case SourceCondaPrefix:
		return "conda-prefix"
	case SourceBaseCondaPrefix:
		return "base-conda-prefix"
	case SourceDiscoveredEnvironment:
		return "discovered-environment"
	case SourceSearchPath:
		return "search-path"
	case SourceSearchPathFirst:
		return "search-path-first"
	case SourceRegistry:
		return "registry"
	case SourceMicrosoftStore:
		return "microsoft-store"
	case SourceManaged:
		return "managed"
	case SourceParentInterpreter:
		return "parent-interpreter"
	default:
		return "unknown"
	}
}

// isVirtualLike reports whether a source is inherently venv-like,
// independent of querying the interpreter, used for the source-level
// pre-filter of spec.md §4.C.
func (s Source) isVirtualLike() bool {
	switch s {
	case SourceActiveEnvironment, SourceCondaPrefix, SourceDiscoveredEnvironment:
		return true
	default:
		return false
	}
}

// Implementation enumerates the Python implementations spec.md §3 names.
type Implementation string

const (
	CPython Implementation = "cpython"
	PyPy    Implementation = "pypy"
	GraalPy Implementation = "graalpy"
)

// RequestKind tags the shape of a PythonRequest.
type RequestKind int

const (
	RequestDefault RequestKind = iota
	RequestAny
	RequestVersion
	RequestDirectory
	RequestFile
	RequestExecutableName
	RequestImplementation
	RequestImplementationVersion
	RequestKeyKind
)

// Request is the polymorphic interpreter request of spec.md §3.
type Request struct {
	Kind           RequestKind
	Version        version.Request
	Path           string // Directory or File
	ExecutableName string
	Implementation Implementation
	Key            string
}

// DefaultRequest accepts any stable interpreter acceptable as the default.
func DefaultRequest() Request { return Request{Kind: RequestDefault} }

// AnyRequest additionally admits pre-releases and alternative
// implementations.
func AnyRequest() Request { return Request{Kind: RequestAny} }

// VersionRequest requests an interpreter matching a version.Request.
func VersionRequest(v version.Request) Request {
	return Request{Kind: RequestVersion, Version: v}
}

// DirectoryRequest requests the interpreter found under a virtual
// environment directory.
func DirectoryRequest(path string) Request { return Request{Kind: RequestDirectory, Path: path} }

// FileRequest requests an explicit interpreter executable path.
func FileRequest(path string) Request { return Request{Kind: RequestFile, Path: path} }

// ExecutableNameRequest requests an interpreter by bare executable name
// resolved via PATH.
func ExecutableNameRequest(name string) Request {
	return Request{Kind: RequestExecutableName, ExecutableName: name}
}

// ImplementationRequest requests any version of a specific implementation.
func ImplementationRequest(impl Implementation) Request {
	return Request{Kind: RequestImplementation, Implementation: impl}
}

// ImplementationVersionRequest requests a specific implementation at a
// specific version.
func ImplementationVersionRequest(impl Implementation, v version.Request) Request {
	return Request{Kind: RequestImplementationVersion, Implementation: impl, Version: v}
}

// KeyRequest requests an interpreter by a managed-installation download key.
func KeyRequest(key string) Request { return Request{Kind: RequestKeyKind, Key: key} }

// Interpreter is the result of querying a candidate executable, per
// spec.md §3.
type Interpreter struct {
	Path            string
	Executable      string // sys.executable
	Prefix          string // sys.prefix
	BaseExecutable  string // sys._base_executable, if present
	Major           int
	Minor           int
	Patch           int
	Pre             version.PreReleaseKind
	PreNum          int
	Implementation  Implementation
	GILEnabled      bool
	IsVirtualenv    bool
	Source          Source
}

// Variant derives the RequestVariant implied by GILEnabled.
func (i Interpreter) Variant() version.RequestVariant {
	if !i.GILEnabled {
		return version.VariantFreethreaded
	}

	return version.VariantDefault
}
