package toolenv_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bilusteknoloji/pymodule/internal/config"
	"github.com/bilusteknoloji/pymodule/internal/downloader"
	"github.com/bilusteknoloji/pymodule/internal/pyfind"
	"github.com/bilusteknoloji/pymodule/internal/toolenv"
)

// fakeFinder writes a placeholder "python3" executable and returns a
// Finder that resolves it without touching the real PATH or shelling out
// to an interpreter, mirroring pyfind's own finder_test.go fakes.
func fakeFinder(t *testing.T) *pyfind.Finder {
	t.Helper()

	dir := t.TempDir()
	pythonPath := filepath.Join(dir, "python3")

	if err := os.WriteFile(pythonPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake python3: %v", err)
	}

	queryOutput := []byte("/usr/bin/pythonX\n/usr\n\n3\n12\n0\ncpython\n0\n0\n")

	return pyfind.New(
		pyfind.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return queryOutput, nil
		}),
		pyfind.WithEnvLookup(func(k string) string {
			if k == "PYMODULE_TEST_PYTHON_PATH" {
				return dir
			}

			return ""
		}),
		pyfind.WithEnvironmentPreference(config.EnvironmentAny),
	)
}

func TestInstallWritesReceiptAndListIncludesTool(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	ran := 0

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			ran++

			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "black",
		Requirements:  []string{"black==24.1.0"},
		PythonRequest: pyfind.DefaultRequest(),
	}

	outcome, err := m.Install(context.Background(), req)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if outcome != toolenv.OutcomeInstalled {
		t.Errorf("outcome = %v, want OutcomeInstalled", outcome)
	}

	if ran == 0 {
		t.Error("venv creation never invoked the command runner")
	}

	state, r, err := m.Inspect("black")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if state != toolenv.StateInstalled {
		t.Fatalf("state = %v, want StateInstalled", state)
	}

	if len(r.Tool.Requirements) != 1 || r.Tool.Requirements[0] != "black==24.1.0" {
		t.Errorf("receipt requirements = %v", r.Tool.Requirements)
	}

	names, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(names) != 1 || names[0] != "black" {
		t.Errorf("List = %v, want [black]", names)
	}
}

func TestUninstallRemovesEnvironment(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{Name: "ruff", PythonRequest: pyfind.DefaultRequest()}

	if _, err := m.Install(context.Background(), req); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if err := m.Uninstall(context.Background(), "ruff"); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	state, _, err := m.Inspect("ruff")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if state != toolenv.StateNotInstalled {
		t.Errorf("state after uninstall = %v, want StateNotInstalled", state)
	}
}

func TestUninstallUnknownToolErrors(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")
	m := toolenv.New(toolDir, toolenv.WithFinder(fakeFinder(t)))

	if err := m.Uninstall(context.Background(), "nonexistent"); err == nil {
		t.Fatal("Uninstall on unknown tool returned no error")
	}
}

func TestInstallWithUnchangedSettingsIsNoop(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	ran := 0

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			ran++

			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "black",
		Requirements:  []string{"black==24.1.0"},
		PythonRequest: pyfind.DefaultRequest(),
	}

	if _, err := m.Install(context.Background(), req); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	venvRuns := ran

	outcome, err := m.Install(context.Background(), req)
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}

	if outcome != toolenv.OutcomeAlreadyInstalled {
		t.Errorf("outcome = %v, want OutcomeAlreadyInstalled", outcome)
	}

	if ran != venvRuns {
		t.Errorf("second Install invoked the command runner %d more times; environment should be untouched", ran-venvRuns)
	}
}

func TestInstallWithChangedRequirementsRebuilds(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "black",
		Requirements:  []string{"black==24.1.0"},
		PythonRequest: pyfind.DefaultRequest(),
	}

	if _, err := m.Install(context.Background(), req); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	req.Requirements = []string{"black==24.2.0"}

	outcome, err := m.Install(context.Background(), req)
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}

	if outcome != toolenv.OutcomeReinstalled {
		t.Errorf("outcome = %v, want OutcomeReinstalled", outcome)
	}

	_, r, err := m.Inspect("black")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if len(r.Tool.Requirements) != 1 || r.Tool.Requirements[0] != "black==24.2.0" {
		t.Errorf("receipt requirements = %v, want updated pin", r.Tool.Requirements)
	}
}

func TestInstallUpgradeFlagForcesRebuildAndReportsUpgraded(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "black",
		Requirements:  []string{"black"},
		PythonRequest: pyfind.DefaultRequest(),
	}

	if _, err := m.Install(context.Background(), req); err != nil {
		t.Fatalf("first Install: %v", err)
	}

	req.Upgrade = true

	outcome, err := m.Install(context.Background(), req)
	if err != nil {
		t.Fatalf("second Install: %v", err)
	}

	if outcome != toolenv.OutcomeUpgraded {
		t.Errorf("outcome = %v, want OutcomeUpgraded", outcome)
	}
}

func TestInstallFailureRollsBackPartialEnvironment(t *testing.T) {
	toolDir := filepath.Join(t.TempDir(), "tools")

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "broken",
		Requirements:  []string{"broken==1.0.0"},
		PythonRequest: pyfind.DefaultRequest(),
		Downloads: []downloader.Result{
			{Name: "broken", FilePath: filepath.Join(t.TempDir(), "does-not-exist.whl")},
		},
	}

	if _, err := m.Install(context.Background(), req); err == nil {
		t.Fatal("Install with an unreadable wheel returned no error")
	}

	state, _, err := m.Inspect("broken")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	if state != toolenv.StateNotInstalled {
		t.Errorf("state after failed install = %v, want StateNotInstalled (partial env should be removed)", state)
	}

	if _, err := os.Stat(filepath.Join(toolDir, "broken")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("partial environment directory still exists: %v", err)
	}
}

func TestLinkEntryPointsReportsAllCollisions(t *testing.T) {
	toolDir := t.TempDir()
	binDir := filepath.Join(filepath.Dir(toolDir), "bin")

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}

	for _, name := range []string{"foo", "bar"} {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatalf("seed conflicting entry point %s: %v", name, err)
		}
	}

	m := toolenv.New(toolDir,
		toolenv.WithFinder(fakeFinder(t)),
		toolenv.WithCommandRunner(func(ctx context.Context, name string, args ...string) ([]byte, error) {
			root := args[len(args)-1]

			scriptsDir := filepath.Join(root, "bin")
			if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
				return nil, err
			}

			for _, n := range []string{"foo", "bar"} {
				if err := os.WriteFile(filepath.Join(scriptsDir, n), []byte("#!/bin/sh\n"), 0o755); err != nil {
					return nil, err
				}
			}

			return nil, nil
		}),
	)

	req := toolenv.InstallRequest{
		Name:          "newtool",
		Requirements:  []string{"newtool"},
		PythonRequest: pyfind.DefaultRequest(),
	}

	_, err := m.Install(context.Background(), req)

	var collision *toolenv.ErrEntryPointCollision
	if !errors.As(err, &collision) {
		t.Fatalf("Install error = %v, want *ErrEntryPointCollision", err)
	}

	if len(collision.Names) != 2 {
		t.Errorf("collision.Names = %v, want both foo and bar reported", collision.Names)
	}
}
