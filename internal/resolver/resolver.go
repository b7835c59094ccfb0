// Package resolver walks a dependency closure over the PyPI index,
// picking a version for each package that satisfies every constraint
// accumulated against it. It consumes the shared internal/requirement
// and internal/version types rather than re-parsing PEP 440/508 text
// of its own: requirement.Parse handles specifier, marker, and direct-
// source syntax, and version.SpecifierSet/Version handle comparison and
// ordering.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bilusteknoloji/pymodule/internal/pypi"
	"github.com/bilusteknoloji/pymodule/internal/requirement"
	"github.com/bilusteknoloji/pymodule/internal/version"
)

// Resolver defines the interface for resolving package dependencies.
type Resolver interface {
	Resolve(ctx context.Context, requirements []string) ([]ResolvedPackage, error)
}

// ResolvedPackage represents a package with its resolved version and dependencies.
type ResolvedPackage struct {
	Name         string
	Version      version.Version
	Dependencies []string
}

// Option configures a Service.
type Option func(*Service)

// WithNoDeps disables dependency resolution; only root packages are resolved.
func WithNoDeps(noDeps bool) Option {
	return func(s *Service) {
		s.noDeps = noDeps
	}
}

// WithMarkerEnv sets the environment for evaluating PEP 508 markers.
func WithMarkerEnv(env requirement.MarkerEnv) Option {
	return func(s *Service) {
		s.markerEnv = env
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service resolves package dependencies using a simple BFS iterative approach.
type Service struct {
	client    pypi.Client
	noDeps    bool
	markerEnv requirement.MarkerEnv
	logger    *slog.Logger
}

// compile-time proof that Service implements Resolver.
var _ Resolver = (*Service)(nil)

// New creates a new dependency resolver with the given PyPI client.
func New(client pypi.Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Resolve resolves all dependencies for the given package requirements.
// It walks the dependency tree using BFS, finds compatible versions,
// and returns the full list of packages to install.
func (s *Service) Resolve(ctx context.Context, requirements []string) ([]ResolvedPackage, error) {
	var queue []requirement.Requirement

	for _, r := range requirements {
		req, err := requirement.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parsing requirement %q: %w", r, err)
		}

		queue = append(queue, req)
	}

	resolved := make(map[string]*ResolvedPackage)          // name → resolved info
	constraints := make(map[string][]version.SpecifierSet) // name → accumulated specifier sets
	processing := make(map[string]bool)                    // names we've already fetched deps for

	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]

		name := req.Name

		if rs, ok := req.Source.(requirement.RegistrySource); ok && !rs.Specifiers.IsEmpty() {
			constraints[name] = append(constraints[name], rs.Specifiers)
		}

		// If already resolved, verify the resolved version still satisfies all constraints.
		if pkg, ok := resolved[name]; ok {
			if !matchesAll(pkg.Version, constraints[name]) {
				return nil, fmt.Errorf("version conflict for %s: %s does not satisfy all constraints", name, pkg.Version)
			}

			continue
		}

		// Skip if we've already fetched and queued deps for this package.
		if processing[name] {
			continue
		}

		processing[name] = true

		s.logger.Debug("resolving package", slog.String("name", name))

		// Fetch package info from PyPI.
		info, err := s.client.GetPackage(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("fetching %s from PyPI: %w", name, err)
		}

		// Collect available versions from releases.
		candidates := availableVersions(info)

		// Find the highest version matching all constraints.
		bestRaw, best, ok, err := findBestVersion(candidates, constraints[name])
		if err != nil {
			return nil, fmt.Errorf("finding best version for %s: %w", name, err)
		}

		if !ok {
			return nil, fmt.Errorf("no compatible version found for %s", name)
		}

		s.logger.Debug("resolved version",
			slog.String("name", name),
			slog.String("version", best.String()),
		)

		// Get requires_dist for the resolved version.
		var deps []string

		if bestRaw == info.Info.Version {
			deps = info.Info.RequiresDist
		} else {
			versionInfo, err := s.client.GetPackageVersion(ctx, name, bestRaw)
			if err != nil {
				return nil, fmt.Errorf("fetching %s version %s: %w", name, bestRaw, err)
			}

			deps = versionInfo.Info.RequiresDist
		}

		resolved[name] = &ResolvedPackage{
			Name:         name,
			Version:      best,
			Dependencies: filterDepNames(deps, s.markerEnv),
		}

		// Queue dependencies unless --no-deps.
		if !s.noDeps {
			for _, dep := range deps {
				depReq, err := requirement.Parse(dep)
				if err != nil {
					s.logger.Debug("skipping unparsable dependency", slog.String("dep", dep), slog.String("error", err.Error()))

					continue
				}

				if depReq.Marker != "" && !requirement.EvalMarker(depReq.Marker, s.markerEnv) {
					continue
				}

				queue = append(queue, depReq)
			}
		}
	}

	result := make([]ResolvedPackage, 0, len(resolved))
	for _, pkg := range resolved {
		result = append(result, *pkg)
	}

	return result, nil
}

// matchesAll reports whether v satisfies every specifier set accumulated
// against its package name.
func matchesAll(v version.Version, constraints []version.SpecifierSet) bool {
	for _, ss := range constraints {
		if !ss.Check(v) {
			return false
		}
	}

	return true
}

// findBestVersion picks the highest version among candidates that
// satisfies every constraint. Pre-release candidates are excluded
// unless one of the constraints itself targets a pre-release, per
// spec.md §4.A. Returns the winning candidate's original release text
// alongside its parsed form, since PyPI's per-version endpoint expects
// the exact release key rather than a re-normalized string.
func findBestVersion(candidates []string, constraints []version.SpecifierSet) (string, version.Version, bool, error) {
	type parsedVersion struct {
		raw string
		v   version.Version
	}

	valid := make([]parsedVersion, 0, len(candidates))

	for _, raw := range candidates {
		v, err := version.Parse(raw)
		if err != nil {
			continue
		}

		valid = append(valid, parsedVersion{raw: raw, v: v})
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].v.GreaterThan(valid[j].v) })

	allowPrerelease := false

	for _, c := range constraints {
		if c.AllowsPrereleases() {
			allowPrerelease = true

			break
		}
	}

	for _, p := range valid {
		if p.v.IsPreRelease() && !allowPrerelease {
			continue
		}

		if !matchesAll(p.v, constraints) {
			continue
		}

		return p.raw, p.v, true, nil
	}

	return "", version.Version{}, false, nil
}

// availableVersions extracts version strings from a PackageInfo's releases.
// Falls back to info.Version if no releases are present.
func availableVersions(info *pypi.PackageInfo) []string {
	if len(info.Releases) > 0 {
		versions := make([]string, 0, len(info.Releases))

		for v, files := range info.Releases {
			if len(files) > 0 {
				versions = append(versions, v)
			}
		}

		return versions
	}

	// Fallback: only the latest version is known.
	if info.Info.Version != "" {
		return []string{info.Info.Version}
	}

	return nil
}

// filterDepNames extracts normalized dependency names from requires_dist,
// filtering by marker environment.
func filterDepNames(requiresDist []string, env requirement.MarkerEnv) []string {
	var names []string

	for _, dep := range requiresDist {
		req, err := requirement.Parse(dep)
		if err != nil {
			continue
		}

		if req.Marker != "" && !requirement.EvalMarker(req.Marker, env) {
			continue
		}

		names = append(names, req.Name)
	}

	return names
}

// FormatPythonVersion converts a compact interpreter tag like "312" to
// dotted "3.12", for building a marker environment's python_version.
func FormatPythonVersion(v string) string {
	if len(v) >= 2 {
		return v[:1] + "." + v[1:]
	}

	return v
}
