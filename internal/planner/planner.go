// Package planner implements the install plan diff of spec.md §4.E: given
// a target requirement set and a manifest of what is already installed,
// it computes what to install, reinstall, remove, or leave untouched,
// and enforces hash/build policy before anything is downloaded.
package planner

import (
	"fmt"

	"github.com/bilusteknoloji/pymodule/internal/config"
	"github.com/bilusteknoloji/pymodule/internal/requirement"
	"github.com/bilusteknoloji/pymodule/internal/version"
)

// InstalledPackage is one entry in the site-packages manifest the
// planner diffs against.
type InstalledPackage struct {
	Name    string
	Version version.Version
	// DirectURL records the source a direct-reference install came
	// from, empty for registry installs.
	DirectURL string
}

// Manifest is the current state of an environment's site-packages,
// keyed by normalized package name.
type Manifest map[string]InstalledPackage

// Plan is the output of Build: the set of actions required to bring an
// environment's site-packages in line with a requirement set, per
// spec.md §4.E.
type Plan struct {
	ToInstall   []requirement.Requirement
	ToReinstall []requirement.Requirement
	ToRemove    []InstalledPackage
	Audited     []requirement.Requirement
	Downloads   []requirement.Requirement
	Builds      []requirement.Requirement
}

// HashError reports a --require-hashes violation, per spec.md §7.
// Error() renders it as "<requirement>: <reason>", with the reasons set
// in checkHashRequirement; no violation has a message of its own beyond
// that form.
type HashError struct {
	Requirement string
	Reason      string
}

func (e *HashError) Error() string {
	return fmt.Sprintf("%s: %s", e.Requirement, e.Reason)
}

// Build computes an install plan for targets against the current
// manifest, honoring hashPolicy and buildPolicy.
//
// Diff rule: a requirement already satisfied at an acceptable version
// and source is "audited" (left untouched); one present at the wrong
// version or source is reinstalled; one absent is installed. Anything
// in the manifest not named by targets, and not a transitive dependency
// retained by the caller's closure, is removed — callers pass only the
// full resolved closure as targets, so "not named" means "no longer
// needed".
func Build(targets []requirement.Requirement, manifest Manifest, hashPolicy config.HashPolicy, buildPolicy config.BuildPolicy) (*Plan, error) {
	plan := &Plan{}

	seen := make(map[string]bool, len(targets))

	for _, req := range targets {
		name := requirement.NormalizeName(req.Name)
		seen[name] = true

		if hashPolicy.RequireHashes {
			if err := checkHashRequirement(req); err != nil {
				return nil, err
			}
		}

		existing, installed := manifest[name]

		switch {
		case !installed:
			plan.ToInstall = append(plan.ToInstall, req)
		case needsReinstall(req, existing):
			plan.ToReinstall = append(plan.ToReinstall, req)
		default:
			plan.Audited = append(plan.Audited, req)

			continue
		}

		classifyAcquisition(plan, req, buildPolicy)
	}

	for name, pkg := range manifest {
		if !seen[name] {
			plan.ToRemove = append(plan.ToRemove, pkg)
		}
	}

	return plan, nil
}

// needsReinstall reports whether an already-installed package fails to
// satisfy req, requiring replacement rather than a no-op.
func needsReinstall(req requirement.Requirement, existing InstalledPackage) bool {
	switch src := req.Source.(type) {
	case requirement.RegistrySource:
		if existing.DirectURL != "" {
			return true // was direct, now registry: source changed
		}

		return !src.Specifiers.Check(existing.Version)
	case requirement.URLSource:
		return existing.DirectURL != src.URL
	case requirement.GitSource:
		return existing.DirectURL != src.RepoURL+"@"+src.Revision
	case requirement.PathSource, requirement.DirectorySource:
		// Local sources are always refreshed: content may have changed
		// without a version bump, especially under editable installs.
		return true
	default:
		return true
	}
}

// classifyAcquisition routes a requirement slated for install/reinstall
// into Downloads or Builds according to buildPolicy, per spec.md §4.E.
func classifyAcquisition(plan *Plan, req requirement.Requirement, buildPolicy config.BuildPolicy) {
	if buildPolicy.AllowsBinary(req.Name) {
		plan.Downloads = append(plan.Downloads, req)

		return
	}

	if buildPolicy.AllowsBuild(req.Name) {
		plan.Builds = append(plan.Builds, req)

		return
	}

	// Neither binary nor build is allowed: still record the
	// acquisition as a download attempt so the caller surfaces a
	// concrete "no usable distribution" error instead of silently
	// dropping the requirement.
	plan.Downloads = append(plan.Downloads, req)
}

// checkHashRequirement enforces spec.md §4.E's --require-hashes rule:
// every requirement must carry at least one hash, and direct VCS/editable/
// directory sources (which cannot be hash-pinned) are rejected outright,
// regardless of whether hashes happen to be present.
func checkHashRequirement(req requirement.Requirement) error {
	switch req.Source.(type) {
	case requirement.GitSource:
		return &HashError{Requirement: req.Name, Reason: "cannot verify hashes for a Git source"}
	case requirement.DirectorySource:
		return &HashError{Requirement: req.Name, Reason: "cannot verify hashes for a local directory source"}
	}

	if req.IsEditable() {
		return &HashError{Requirement: req.Name, Reason: "cannot verify hashes for an editable install"}
	}

	if len(req.Hashes) == 0 {
		return &HashError{Requirement: req.Name, Reason: "no hashes specified (required in --require-hashes mode)"}
	}

	return nil
}
