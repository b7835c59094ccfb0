// Package requirement implements the polymorphic requirement model of
// spec.md §4.B: a package name, an optional extras set, a source (registry,
// URL, local path, VCS, or source directory), an optional marker, and an
// optional hash list.
package requirement

import (
	"fmt"
	"strings"

	"github.com/bilusteknoloji/pymodule/internal/version"
)

// HashAlgorithm enumerates the digest algorithms spec.md §3 allows.
type HashAlgorithm string

const (
	SHA256 HashAlgorithm = "sha256"
	SHA384 HashAlgorithm = "sha384"
	SHA512 HashAlgorithm = "sha512"
	MD5    HashAlgorithm = "md5"
)

// Hash is a single declared digest for a requirement.
type Hash struct {
	Algorithm HashAlgorithm
	Digest    string
}

// ArchiveKind tags the file format of a URL source, inferred from its
// extension.
type ArchiveKind int

const (
	ArchiveUnknown ArchiveKind = iota
	ArchiveWheel
	ArchiveTarGz
	ArchiveTarBz2
	ArchiveTarXz
	ArchiveTar
	ArchiveZip
)

// InferArchiveKind maps a filename's extension to an ArchiveKind.
func InferArchiveKind(filename string) ArchiveKind {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		return ArchiveWheel
	case strings.HasSuffix(filename, ".tar.gz"):
		return ArchiveTarGz
	case strings.HasSuffix(filename, ".tar.bz2"):
		return ArchiveTarBz2
	case strings.HasSuffix(filename, ".tar.xz"):
		return ArchiveTarXz
	case strings.HasSuffix(filename, ".tar"):
		return ArchiveTar
	case strings.HasSuffix(filename, ".zip"):
		return ArchiveZip
	default:
		return ArchiveUnknown
	}
}

// Source is the closed sum of requirement provenance kinds from spec.md §3.
// Exhaustive match, not virtual dispatch, per spec.md §9.
type Source interface {
	sourceKind()
}

// RegistrySource is a requirement resolved against the package index under
// a version specifier set.
type RegistrySource struct {
	Specifiers version.SpecifierSet
}

func (RegistrySource) sourceKind() {}

// URLSource is a requirement pinned to a direct archive URL.
type URLSource struct {
	URL  string
	Kind ArchiveKind
}

func (URLSource) sourceKind() {}

// PathSource is a requirement installed from a local filesystem path.
type PathSource struct {
	Path     string
	Editable bool
}

func (PathSource) sourceKind() {}

// GitSource is a requirement fetched from a version-control repository.
type GitSource struct {
	RepoURL     string
	Revision    string // commit, tag, or branch; empty means default branch
	Subdirectory string
}

func (GitSource) sourceKind() {}

// DirectorySource is a requirement built from a local source tree.
type DirectorySource struct {
	Path     string
	Editable bool
}

func (DirectorySource) sourceKind() {}

// Requirement is a parsed, canonicalized, immutable dependency specifier.
type Requirement struct {
	Name   string
	Extras []string
	Source Source
	Marker string
	Hashes []Hash
}

// NormalizeName normalizes a Python package name per PEP 503: lowercase
// with runs of [-_.] folded to a single hyphen.
func NormalizeName(name string) string {
	name = strings.ToLower(name)

	var b strings.Builder

	prevHyphen := false

	for i := range len(name) {
		switch name[i] {
		case '-', '_', '.':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		default:
			b.WriteByte(name[i])
			prevHyphen = false
		}
	}

	return b.String()
}

// normalizeExtras normalizes each extra name and drops empties.
func normalizeExtras(raw string) []string {
	var extras []string

	for _, e := range strings.Split(raw, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		extras = append(extras, NormalizeName(e))
	}

	return extras
}

// IsDirectURL reports whether the requirement's source is a remote
// location (an archive URL or a git repository). Local path and directory
// sources report false, as registry lookups do.
func (r Requirement) IsDirectURL() bool {
	switch r.Source.(type) {
	case URLSource, GitSource:
		return true
	default:
		return false
	}
}

// IsEditable reports whether the source is a path or directory requested
// in editable mode.
func (r Requirement) IsEditable() bool {
	switch s := r.Source.(type) {
	case PathSource:
		return s.Editable
	case DirectorySource:
		return s.Editable
	default:
		return false
	}
}

// IsPinned reports whether a registry requirement names exactly one
// "==" specifier (no ranges).
func (r Requirement) IsPinned() bool {
	rs, ok := r.Source.(RegistrySource)
	if !ok {
		// Direct sources with an explicit commit/URL are pinned by
		// construction; directory/path sources never are.
		switch s := r.Source.(type) {
		case GitSource:
			return s.Revision != ""
		case URLSource:
			return true
		default:
			return false
		}
	}

	s := rs.Specifiers.String()

	return strings.HasPrefix(strings.TrimSpace(s), "==") && !strings.Contains(s, ",")
}

// AllowsPrereleases reports whether this requirement's specifier set
// itself targets a pre-release, per spec.md §4.B.
func (r Requirement) AllowsPrereleases() bool {
	rs, ok := r.Source.(RegistrySource)
	if !ok {
		return false
	}

	return rs.Specifiers.AllowsPrereleases()
}

// String renders the requirement in a canonical PEP 508-ish textual form,
// primarily for logging and receipt serialization.
func (r Requirement) String() string {
	var b strings.Builder

	b.WriteString(r.Name)

	if len(r.Extras) > 0 {
		b.WriteString("[")
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteString("]")
	}

	switch s := r.Source.(type) {
	case RegistrySource:
		b.WriteString(s.Specifiers.String())
	case URLSource:
		fmt.Fprintf(&b, " @ %s", s.URL)
	case PathSource:
		if s.Editable {
			return "-e " + s.Path
		}

		fmt.Fprintf(&b, " @ file://%s", s.Path)
	case GitSource:
		fmt.Fprintf(&b, " @ git+%s", s.RepoURL)

		if s.Revision != "" {
			fmt.Fprintf(&b, "@%s", s.Revision)
		}

		if s.Subdirectory != "" {
			fmt.Fprintf(&b, "#subdirectory=%s", s.Subdirectory)
		}
	case DirectorySource:
		if s.Editable {
			return "-e " + s.Path
		}

		b.WriteString(" @ " + s.Path)
	}

	if r.Marker != "" {
		fmt.Fprintf(&b, " ; %s", r.Marker)
	}

	return b.String()
}
