package requirement

import (
	"fmt"
	"path"
	"strings"

	"github.com/bilusteknoloji/pymodule/internal/version"
)

// Parse parses a single PEP 508-ish requirement line, generalizing the
// teacher's ParseRequirement (resolver.ParseRequirement) to the full
// source taxonomy of spec.md §3: registry specifiers, bare URLs/paths,
// "-e <source>", and "git+<url>[@rev][#subdirectory=...]".
//
// A semicolon begins the marker expression only when it is preceded by
// whitespace in the original line; otherwise it is treated as part of a
// preceding URL (e.g. a query string), matching spec.md §4.B.
func Parse(line string) (Requirement, error) {
	line = strings.TrimSpace(line)

	editable := false
	if rest, ok := stripEditableFlag(line); ok {
		editable = true
		line = rest
	}

	nameSpec, marker := splitMarker(line)

	if isDirectSource(nameSpec) {
		return parseDirectSource(nameSpec, marker, editable)
	}

	return parseNameSpec(nameSpec, marker)
}

// stripEditableFlag recognizes a leading "-e " or "--editable " flag.
func stripEditableFlag(line string) (string, bool) {
	for _, prefix := range []string{"-e ", "--editable "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}

	return line, false
}

// splitMarker finds the marker-introducing ";" that follows whitespace
// (or begins the string immediately after the name/specifier with a
// preceding space), per spec.md §4.B's disambiguation rule.
func splitMarker(line string) (nameSpec, marker string) {
	for i := 0; i < len(line); i++ {
		if line[i] != ';' {
			continue
		}

		// A ";" only introduces a marker if preceded by whitespace
		// (or is at a position not inside a URL query/fragment we
		// can't easily detect here, which is acceptable: direct URL
		// forms handle their own "#"/"?" boundaries before markers
		// are even considered for them in parseDirectSource).
		if i == 0 || line[i-1] == ' ' || line[i-1] == '\t' {
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:])
		}
	}

	return line, ""
}

func isDirectSource(s string) bool {
	return strings.HasPrefix(s, "git+") ||
		strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "file://") ||
		strings.HasPrefix(s, "./") ||
		strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/")
}

func parseDirectSource(raw, marker string, editable bool) (Requirement, error) {
	switch {
	case strings.HasPrefix(raw, "git+"):
		return parseGitSource(strings.TrimPrefix(raw, "git+"), marker)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return parseURLSource(raw, marker)
	default:
		return parsePathOrDirSource(strings.TrimPrefix(raw, "file://"), marker, editable)
	}
}

func parseGitSource(raw, marker string) (Requirement, error) {
	repoURL := raw
	revision := ""
	subdir := ""

	if idx := strings.Index(repoURL, "#subdirectory="); idx >= 0 {
		subdir = repoURL[idx+len("#subdirectory="):]
		repoURL = repoURL[:idx]
	}

	if idx := strings.LastIndex(repoURL, "@"); idx >= 0 && idx > strings.Index(repoURL, "://")+3 {
		revision = repoURL[idx+1:]
		repoURL = repoURL[:idx]
	}

	name := NormalizeName(path.Base(strings.TrimSuffix(repoURL, ".git")))

	return Requirement{
		Name:   name,
		Source: GitSource{RepoURL: repoURL, Revision: revision, Subdirectory: subdir},
		Marker: marker,
	}, nil
}

func parseURLSource(raw, marker string) (Requirement, error) {
	fragment := ""
	url := raw

	if idx := strings.Index(url, "#"); idx >= 0 {
		fragment = url[idx+1:]
		url = url[:idx]
	}

	filename := path.Base(url)
	kind := InferArchiveKind(filename)

	req := Requirement{
		Name:   NormalizeName(guessNameFromFilename(filename)),
		Source: URLSource{URL: raw, Kind: kind},
		Marker: marker,
	}

	if h, ok := hashFromFragment(fragment); ok {
		req.Hashes = append(req.Hashes, h)
	}

	return req, nil
}

// hashFromFragment lifts a "#sha256=..."-style URL fragment into a Hash,
// per spec.md §4.B.
func hashFromFragment(fragment string) (Hash, bool) {
	for _, alg := range []HashAlgorithm{SHA256, SHA384, SHA512, MD5} {
		prefix := string(alg) + "="
		if strings.HasPrefix(fragment, prefix) {
			return Hash{Algorithm: alg, Digest: strings.TrimPrefix(fragment, prefix)}, true
		}
	}

	return Hash{}, false
}

func parsePathOrDirSource(p, marker string, editable bool) (Requirement, error) {
	name := NormalizeName(path.Base(strings.TrimRight(p, "/")))

	source := Source(PathSource{Path: p, Editable: editable})
	if editable {
		// Editable installs always target a source tree, not a single
		// archive file: spec.md models this as Directory when editable.
		source = DirectorySource{Path: p, Editable: true}
	}

	return Requirement{Name: name, Source: source, Marker: marker}, nil
}

// guessNameFromFilename extracts a plausible package name from a wheel or
// sdist filename's leading component.
func guessNameFromFilename(filename string) string {
	for _, suffix := range []string{".whl", ".tar.gz", ".tar.bz2", ".tar.xz", ".tar", ".zip"} {
		if strings.HasSuffix(filename, suffix) {
			filename = strings.TrimSuffix(filename, suffix)

			break
		}
	}

	parts := strings.SplitN(filename, "-", 2)

	return parts[0]
}

// parseNameSpec parses the registry form: "name[extras]specifier".
func parseNameSpec(nameSpec, marker string) (Requirement, error) {
	// Strip extras: package[extra1,extra2]
	extras := ""
	if idx := strings.Index(nameSpec, "["); idx >= 0 {
		if endIdx := strings.Index(nameSpec, "]"); endIdx > idx {
			extras = nameSpec[idx+1 : endIdx]
			nameSpec = nameSpec[:idx] + nameSpec[endIdx+1:]
		}
	}

	// Strip parenthesized specifier: package (>=1.0)
	nameSpec = strings.NewReplacer("(", "", ")", "").Replace(nameSpec)
	nameSpec = strings.TrimSpace(nameSpec)

	specStart := strings.IndexAny(nameSpec, "><=!~")
	name := nameSpec
	specifierText := ""

	if specStart >= 0 {
		name = strings.TrimSpace(nameSpec[:specStart])
		specifierText = strings.TrimSpace(nameSpec[specStart:])
	}

	if name == "" {
		return Requirement{}, fmt.Errorf("parsing requirement %q: missing package name", nameSpec)
	}

	ss, err := version.ParseSpecifierSet(specifierText)
	if err != nil {
		return Requirement{}, fmt.Errorf("parsing requirement %q: %w", nameSpec, err)
	}

	return Requirement{
		Name:   NormalizeName(name),
		Extras: normalizeExtras(extras),
		Source: RegistrySource{Specifiers: ss},
		Marker: marker,
	}, nil
}

// AttachHash parses a "--hash=algo:digest" option and appends it to req.
func AttachHash(req Requirement, opt string) (Requirement, error) {
	opt = strings.TrimPrefix(opt, "--hash=")

	parts := strings.SplitN(opt, ":", 2)
	if len(parts) != 2 {
		return req, fmt.Errorf("invalid --hash option %q: expected algo:digest", opt)
	}

	req.Hashes = append(req.Hashes, Hash{Algorithm: HashAlgorithm(parts[0]), Digest: parts[1]})

	return req, nil
}
