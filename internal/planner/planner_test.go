package planner_test

import (
	"testing"

	"github.com/bilusteknoloji/pymodule/internal/config"
	"github.com/bilusteknoloji/pymodule/internal/planner"
	"github.com/bilusteknoloji/pymodule/internal/requirement"
	"github.com/bilusteknoloji/pymodule/internal/version"
)

func mustSpec(t *testing.T, s string) version.SpecifierSet {
	t.Helper()

	ss, err := version.ParseSpecifierSet(s)
	if err != nil {
		t.Fatalf("ParseSpecifierSet(%q): %v", s, err)
	}

	return ss
}

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()

	v, err := version.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}

	return v
}

func TestBuildClassifiesInstallReinstallAudit(t *testing.T) {
	targets := []requirement.Requirement{
		{Name: "new-pkg", Source: requirement.RegistrySource{Specifiers: mustSpec(t, ">=1.0")}},
		{Name: "stale-pkg", Source: requirement.RegistrySource{Specifiers: mustSpec(t, ">=2.0")}},
		{Name: "fresh-pkg", Source: requirement.RegistrySource{Specifiers: mustSpec(t, ">=1.0")}},
	}

	manifest := planner.Manifest{
		"stale-pkg": {Name: "stale-pkg", Version: mustVersion(t, "1.0")},
		"fresh-pkg": {Name: "fresh-pkg", Version: mustVersion(t, "1.5")},
		"orphan-pkg": {Name: "orphan-pkg", Version: mustVersion(t, "0.1")},
	}

	plan, err := planner.Build(targets, manifest, config.HashPolicy{}, config.BuildPolicy{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.ToInstall) != 1 || plan.ToInstall[0].Name != "new-pkg" {
		t.Errorf("ToInstall = %+v, want [new-pkg]", plan.ToInstall)
	}

	if len(plan.ToReinstall) != 1 || plan.ToReinstall[0].Name != "stale-pkg" {
		t.Errorf("ToReinstall = %+v, want [stale-pkg]", plan.ToReinstall)
	}

	if len(plan.Audited) != 1 || plan.Audited[0].Name != "fresh-pkg" {
		t.Errorf("Audited = %+v, want [fresh-pkg]", plan.Audited)
	}

	if len(plan.ToRemove) != 1 || plan.ToRemove[0].Name != "orphan-pkg" {
		t.Errorf("ToRemove = %+v, want [orphan-pkg]", plan.ToRemove)
	}

	if len(plan.Downloads) != 2 {
		t.Errorf("Downloads = %+v, want 2 entries (install + reinstall)", plan.Downloads)
	}
}

func TestBuildRequireHashesRejectsUnhashed(t *testing.T) {
	targets := []requirement.Requirement{
		{Name: "unhashed", Source: requirement.RegistrySource{Specifiers: mustSpec(t, "==1.0")}},
	}

	_, err := planner.Build(targets, planner.Manifest{}, config.HashPolicy{RequireHashes: true}, config.BuildPolicy{})
	if err == nil {
		t.Fatal("Build under RequireHashes with no hash did not error")
	}
}

func TestBuildRequireHashesAcceptsHashed(t *testing.T) {
	targets := []requirement.Requirement{
		{
			Name:   "hashed",
			Source: requirement.RegistrySource{Specifiers: mustSpec(t, "==1.0")},
			Hashes: []requirement.Hash{{Algorithm: requirement.SHA256, Digest: "abc123"}},
		},
	}

	plan, err := planner.Build(targets, planner.Manifest{}, config.HashPolicy{RequireHashes: true}, config.BuildPolicy{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.ToInstall) != 1 {
		t.Errorf("ToInstall = %+v, want 1 entry", plan.ToInstall)
	}
}

func TestBuildRequireHashesRejectsGitSource(t *testing.T) {
	targets := []requirement.Requirement{
		{Name: "vcs-pkg", Source: requirement.GitSource{RepoURL: "https://example.com/repo.git", Revision: "abc"}},
	}

	_, err := planner.Build(targets, planner.Manifest{}, config.HashPolicy{RequireHashes: true}, config.BuildPolicy{})
	if err == nil {
		t.Fatal("Build under RequireHashes with a Git source did not error")
	}
}

func TestBuildRequireHashesRejectsDirectorySourceEvenWithHashes(t *testing.T) {
	targets := []requirement.Requirement{
		{
			Name:   "local-pkg",
			Source: requirement.DirectorySource{Path: "./local-pkg"},
			Hashes: []requirement.Hash{{Algorithm: requirement.SHA256, Digest: "deadbeef"}},
		},
	}

	_, err := planner.Build(targets, planner.Manifest{}, config.HashPolicy{RequireHashes: true}, config.BuildPolicy{})
	if err == nil {
		t.Fatal("Build under RequireHashes with a directory source did not error, even though a hash was attached")
	}
}

func TestBuildHonorsNoBinaryPolicy(t *testing.T) {
	targets := []requirement.Requirement{
		{Name: "needs-build", Source: requirement.RegistrySource{Specifiers: mustSpec(t, ">=1.0")}},
	}

	buildPolicy := config.BuildPolicy{Mode: config.BuildNoBinary}

	plan, err := planner.Build(targets, planner.Manifest{}, config.HashPolicy{}, buildPolicy)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.Builds) != 1 || len(plan.Downloads) != 0 {
		t.Errorf("Builds = %+v, Downloads = %+v, want build-only routing", plan.Builds, plan.Downloads)
	}
}
