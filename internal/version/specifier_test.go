package version_test

import (
	"testing"

	"github.com/bilusteknoloji/pymodule/internal/version"
)

func TestSpecifierStarMatch(t *testing.T) {
	ss, err := version.ParseSpecifierSet("==1.2.*")
	if err != nil {
		t.Fatalf("ParseSpecifierSet error: %v", err)
	}

	if !ss.Check(version.MustParse("1.2.3")) {
		t.Errorf("1.2.3 should match ==1.2.*")
	}

	if ss.Check(version.MustParse("1.3.0")) {
		t.Errorf("1.3.0 should not match ==1.2.*")
	}
}

func TestTildeEqualExpansion(t *testing.T) {
	// ~=2.3 is equivalent to >=2.3, ==2.*
	tilde, err := version.ParseSpecifierSet("~=2.3")
	if err != nil {
		t.Fatalf("ParseSpecifierSet error: %v", err)
	}

	equivalent, err := version.ParseSpecifierSet(">=2.3,==2.*")
	if err != nil {
		t.Fatalf("ParseSpecifierSet error: %v", err)
	}

	candidates := []string{"2.3.0", "2.4.0", "2.9.9", "3.0.0", "2.2.0"}
	for _, c := range candidates {
		v := version.MustParse(c)
		if tilde.Check(v) != equivalent.Check(v) {
			t.Errorf("~=2.3 and >=2.3,==2.* disagree on %s", c)
		}
	}
}

func TestPrereleaseOrderedComparison(t *testing.T) {
	ss, err := version.ParseSpecifierSet(">=1.0rc1")
	if err != nil {
		t.Fatalf("error: %v", err)
	}

	if !ss.Check(version.MustParse("1.0rc1")) {
		t.Errorf("1.0rc1 should satisfy >=1.0rc1 (specifier itself is a prerelease)")
	}
}

func TestParsePreReleaseKindAliases(t *testing.T) {
	tests := map[string]version.PreReleaseKind{
		"a": version.PreReleaseAlpha, "alpha": version.PreReleaseAlpha,
		"b": version.PreReleaseBeta, "beta": version.PreReleaseBeta,
		"c": version.PreReleaseRC, "rc": version.PreReleaseRC,
		"pre": version.PreReleaseRC, "preview": version.PreReleaseRC,
	}

	for in, want := range tests {
		got, err := version.ParsePreReleaseKind(in)
		if err != nil {
			t.Fatalf("ParsePreReleaseKind(%q) error: %v", in, err)
		}

		if got != want {
			t.Errorf("ParsePreReleaseKind(%q) = %v, want %v", in, got, want)
		}
	}
}
