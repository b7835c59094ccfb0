// Package toolenv implements the tool environment manager of spec.md
// §4.D: each tool gets its own isolated virtual environment under a
// shared tool directory, a receipt recording what was installed, and a
// set of linked entry-point executables in a shared bin directory.
//
// The install/uninstall state machine and the dependency-injected
// CommandRunner/EnvLookup seam follow internal/python.Service; wheel
// extraction and entry-point generation are delegated to the adapted
// internal/installer package rather than re-implemented here.
package toolenv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bilusteknoloji/pymodule/internal/downloader"
	"github.com/bilusteknoloji/pymodule/internal/installer"
	"github.com/bilusteknoloji/pymodule/internal/lock"
	"github.com/bilusteknoloji/pymodule/internal/python"
	"github.com/bilusteknoloji/pymodule/internal/pyfind"
	"github.com/bilusteknoloji/pymodule/internal/receipt"
)

// lockTimeout bounds how long Install/Uninstall wait for the tool
// directory lock before giving up.
const lockTimeout = 30 * time.Second

// ErrNotInstalled is returned by operations that require an existing
// tool environment when none is found.
var ErrNotInstalled = errors.New("toolenv: tool not installed")

// ErrEntryPointCollision is returned when installing a tool's entry
// points would overwrite one or more executables not owned by that
// tool, and ForceOverwrite was not set. Every colliding name is
// collected before the install is refused, so a single run of
// linkEntryPoints always reports the complete set.
type ErrEntryPointCollision struct {
	Names []string
}

func (e *ErrEntryPointCollision) Error() string {
	return fmt.Sprintf("Executable already exists: %s (use --force to overwrite)", strings.Join(e.Names, ", "))
}

// CommandRunner executes a command and returns its combined output,
// kept identical in shape to internal/python.CommandRunner so the same
// fakes serve both packages in tests.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option configures a Manager.
type Option func(*Manager)

// WithCommandRunner overrides subprocess execution, for tests.
func WithCommandRunner(fn CommandRunner) Option {
	return func(m *Manager) {
		if fn != nil {
			m.runCmd = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithFinder overrides the interpreter finder, for tests.
func WithFinder(f *pyfind.Finder) Option {
	return func(m *Manager) { m.finder = f }
}

// Manager creates, inspects, and tears down per-tool environments under
// a shared root directory, per spec.md §4.D.
type Manager struct {
	toolDir string
	binDir  string
	runCmd  CommandRunner
	logger  *slog.Logger
	finder  *pyfind.Finder
}

// New creates a Manager rooted at toolDir, with a sibling "bin"
// directory for linked entry points.
func New(toolDir string, opts ...Option) *Manager {
	m := &Manager{
		toolDir: toolDir,
		binDir:  filepath.Join(filepath.Dir(toolDir), "bin"),
		runCmd:  defaultRunCmd,
		logger:  slog.Default(),
		finder:  pyfind.New(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func defaultRunCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// envRoot returns the per-tool environment directory.
func (m *Manager) envRoot(name string) string {
	return filepath.Join(m.toolDir, name)
}

// InstallRequest describes a tool installation or reinstallation.
type InstallRequest struct {
	Name           string
	Requirements   []string
	Constraints    []string
	Overrides      []string
	Options        receipt.Options
	PythonRequest  pyfind.Request
	ForceOverwrite bool
	// Reinstall forces the existing environment to be torn down and
	// rebuilt even if its receipt already matches this request.
	Reinstall bool
	// Upgrade forces a rebuild the same way Reinstall does; it is
	// tracked separately so callers can report "upgraded" rather than
	// "reinstalled" in their own messaging.
	Upgrade   bool
	Downloads []downloader.Result
}

// InstallOutcome reports what Install actually did, so a caller can
// surface spec.md §4.D's distinct "installed" / "reinstalled" /
// "already installed, nothing to do" messaging.
type InstallOutcome int

const (
	OutcomeInstalled InstallOutcome = iota
	OutcomeReinstalled
	OutcomeUpgraded
	OutcomeAlreadyInstalled
)

// State reports whether a tool is installed and what its receipt says,
// per spec.md §4.D's "install/reinstall/upgrade/uninstall" state machine.
type State int

const (
	StateNotInstalled State = iota
	StateInstalled
	StateCorrupt
)

// Inspect reports the current install state of a tool.
func (m *Manager) Inspect(name string) (State, *receipt.Receipt, error) {
	r, err := receipt.Load(m.envRoot(name))
	if err != nil {
		if errors.Is(err, receipt.ErrCorrupt) {
			return StateCorrupt, nil, nil
		}

		return StateNotInstalled, nil, err
	}

	if r == nil {
		return StateNotInstalled, nil, nil
	}

	return StateInstalled, r, nil
}

// Install creates an isolated environment for req.Name, installs the
// given downloads into it, links entry points into the shared bin
// directory, and writes the receipt.
//
// If the tool is already installed with an identical receipt (same
// requirements, constraints, overrides, and options) and neither
// Reinstall nor Upgrade was requested, Install leaves the environment
// untouched, re-links any entry points that went missing, and reports
// OutcomeAlreadyInstalled — per spec.md §4.D, a repeated "tool install"
// with unchanged settings is a no-op, not a rebuild.
//
// Otherwise the existing environment, if any, is torn down and rebuilt
// from scratch. Any failure once the new environment has started being
// built rolls the partial environment back, so a failed install never
// leaves a half-built environment behind.
func (m *Manager) Install(ctx context.Context, req InstallRequest) (InstallOutcome, error) {
	root := m.envRoot(req.Name)

	l, err := lock.Acquire(m.toolDir, lockTimeout)
	if err != nil {
		return 0, fmt.Errorf("acquiring tool directory lock: %w", err)
	}
	defer func() { _ = l.Release() }()

	state, existing, err := m.Inspect(req.Name)
	if err != nil {
		return 0, err
	}

	if state == StateInstalled && !req.Reinstall && !req.Upgrade && receiptMatches(existing, req) {
		if err := m.relinkMissingEntryPoints(root, existing); err != nil {
			return 0, fmt.Errorf("relinking entry points for %s: %w", req.Name, err)
		}

		m.logger.Info("tool already installed", slog.String("name", req.Name))

		return OutcomeAlreadyInstalled, nil
	}

	if state == StateInstalled {
		if err := m.unlinkEntryPoints(existing); err != nil {
			return 0, fmt.Errorf("unlinking previous entry points for %s: %w", req.Name, err)
		}

		if err := os.RemoveAll(root); err != nil {
			return 0, fmt.Errorf("removing previous environment for %s: %w", req.Name, err)
		}
	}

	interp, err := m.finder.Find(ctx, req.PythonRequest)
	if err != nil {
		return 0, fmt.Errorf("finding interpreter for tool %s: %w", req.Name, err)
	}

	if err := m.createVenv(ctx, interp.Path, root); err != nil {
		return 0, fmt.Errorf("creating environment for %s: %w", req.Name, err)
	}

	// From here on, any failure must tear the partial environment back
	// down rather than leave it half-built; rollback is disarmed only
	// once the receipt has been written successfully.
	rollback := true
	defer func() {
		if rollback {
			_ = os.RemoveAll(root)
		}
	}()

	env := &python.Environment{
		PythonPath:   filepath.Join(root, "bin", "python3"),
		Prefix:       root,
		SitePackages: filepath.Join(root, "lib", fmt.Sprintf("python%d.%d", interp.Major, interp.Minor), "site-packages"),
	}

	if err := installer.New(env, installer.WithLogger(m.logger)).Install(ctx, req.Downloads); err != nil {
		return 0, fmt.Errorf("installing tool %s: %w", req.Name, err)
	}

	entryPoints, err := m.linkEntryPoints(env, req.ForceOverwrite)
	if err != nil {
		return 0, err
	}

	r := &receipt.Receipt{Tool: receipt.Tool{
		Requirements: req.Requirements,
		Constraints:  req.Constraints,
		Overrides:    req.Overrides,
		EntryPoints:  entryPoints,
		Options:      req.Options,
	}}

	if err := receipt.Save(root, r); err != nil {
		return 0, fmt.Errorf("saving receipt for %s: %w", req.Name, err)
	}

	rollback = false

	outcome := OutcomeInstalled

	switch {
	case req.Upgrade && state == StateInstalled:
		outcome = OutcomeUpgraded
	case state == StateInstalled:
		outcome = OutcomeReinstalled
	}

	m.logger.Info("installed tool", slog.String("name", req.Name), slog.Int("entrypoints", len(entryPoints)))

	return outcome, nil
}

// receiptMatches reports whether an existing receipt already reflects
// req's requirements, constraints, overrides, and options, meaning a
// rebuild would produce an identical environment.
func receiptMatches(existing *receipt.Receipt, req InstallRequest) bool {
	if existing == nil {
		return false
	}

	return stringSlicesEqual(existing.Tool.Requirements, req.Requirements) &&
		stringSlicesEqual(existing.Tool.Constraints, req.Constraints) &&
		stringSlicesEqual(existing.Tool.Overrides, req.Overrides) &&
		existing.Tool.Options == req.Options
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i, v := range a {
		if b[i] != v {
			return false
		}
	}

	return true
}

// relinkMissingEntryPoints recreates any shared-bin symlink recorded in
// existing's receipt that is no longer present on disk, without
// touching the tool's environment itself.
func (m *Manager) relinkMissingEntryPoints(root string, existing *receipt.Receipt) error {
	if existing == nil {
		return nil
	}

	if err := os.MkdirAll(m.binDir, 0o755); err != nil {
		return fmt.Errorf("creating shared bin directory: %w", err)
	}

	for _, ep := range existing.Tool.EntryPoints {
		if _, err := os.Lstat(ep.InstallPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("checking entry point %s: %w", ep.InstallPath, err)
		}

		src := filepath.Join(root, "bin", ep.Name)

		if err := os.Symlink(src, ep.InstallPath); err != nil {
			return fmt.Errorf("relinking entry point %s: %w", ep.Name, err)
		}
	}

	return nil
}

// Uninstall removes a tool's environment and unlinks its entry points.
func (m *Manager) Uninstall(ctx context.Context, name string) error {
	l, err := lock.Acquire(m.toolDir, lockTimeout)
	if err != nil {
		return fmt.Errorf("acquiring tool directory lock: %w", err)
	}
	defer func() { _ = l.Release() }()

	state, r, err := m.Inspect(name)
	if err != nil {
		return err
	}

	if state == StateNotInstalled {
		return fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}

	if err := m.unlinkEntryPoints(r); err != nil {
		return fmt.Errorf("unlinking entry points for %s: %w", name, err)
	}

	if err := os.RemoveAll(m.envRoot(name)); err != nil {
		return fmt.Errorf("removing environment for %s: %w", name, err)
	}

	return nil
}

// List enumerates installed tools by scanning toolDir for receipts.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.toolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("listing %s: %w", m.toolDir, err)
	}

	var names []string

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		if _, err := os.Stat(receipt.Path(filepath.Join(m.toolDir, e.Name()))); err == nil {
			names = append(names, e.Name())
		}
	}

	return names, nil
}

// createVenv creates a virtual environment at root using pythonPath,
// via "python -m venv", matching how a real interpreter bootstraps an
// isolated environment; this engine never ships its own venv creation
// logic.
func (m *Manager) createVenv(ctx context.Context, pythonPath, root string) error {
	if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
		return fmt.Errorf("creating tool directory: %w", err)
	}

	if _, err := m.runCmd(ctx, pythonPath, "-m", "venv", root); err != nil {
		return fmt.Errorf("running venv: %w", err)
	}

	return nil
}

// linkEntryPoints discovers installed console_scripts under env and
// symlinks them into the shared bin directory, applying the collision
// policy of spec.md §4.D.
func (m *Manager) linkEntryPoints(env *python.Environment, force bool) ([]receipt.EntryPoint, error) {
	scriptsDir := filepath.Join(env.Prefix, "bin")

	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading scripts directory: %w", err)
	}

	if err := os.MkdirAll(m.binDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating shared bin directory: %w", err)
	}

	var (
		out        []receipt.EntryPoint
		collisions []string
	)

	for _, e := range entries {
		if e.IsDir() || e.Name() == "python3" || e.Name() == "python" || e.Name() == "activate" {
			continue
		}

		dst := filepath.Join(m.binDir, e.Name())

		if _, err := os.Lstat(dst); err == nil && !force {
			collisions = append(collisions, e.Name())
		}
	}

	if len(collisions) > 0 {
		return nil, &ErrEntryPointCollision{Names: collisions}
	}

	for _, e := range entries {
		if e.IsDir() || e.Name() == "python3" || e.Name() == "python" || e.Name() == "activate" {
			continue
		}

		src := filepath.Join(scriptsDir, e.Name())
		dst := filepath.Join(m.binDir, e.Name())

		if _, err := os.Lstat(dst); err == nil {
			if err := os.Remove(dst); err != nil {
				return nil, fmt.Errorf("removing existing entry point %s: %w", dst, err)
			}
		}

		if err := os.Symlink(src, dst); err != nil {
			return nil, fmt.Errorf("linking entry point %s: %w", e.Name(), err)
		}

		out = append(out, receipt.EntryPoint{Name: e.Name(), InstallPath: dst})
	}

	return out, nil
}

// unlinkEntryPoints removes the shared-bin symlinks recorded in r,
// tolerating links already removed by the user.
func (m *Manager) unlinkEntryPoints(r *receipt.Receipt) error {
	if r == nil {
		return nil
	}

	for _, ep := range r.Tool.EntryPoints {
		if err := os.Remove(ep.InstallPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing entry point %s: %w", ep.InstallPath, err)
		}
	}

	return nil
}
