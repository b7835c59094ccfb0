package pyfind

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bilusteknoloji/pymodule/internal/config"
	"github.com/bilusteknoloji/pymodule/internal/version"
)

// ErrNoInterpreter is returned when no interpreter satisfies a request
// after all three discovery passes.
var ErrNoInterpreter = errors.New("pyfind: no matching Python interpreter found")

// Option configures a Finder, following the teacher's functional-options
// convention used throughout this module (python.Option, pypi.Option, …).
type Option func(*Finder)

// WithPythonPreference sets which interpreter sources are admissible.
func WithPythonPreference(p config.PythonPreference) Option {
	return func(f *Finder) { f.pythonPreference = p }
}

// WithEnvironmentPreference sets the virtual/system admission policy.
func WithEnvironmentPreference(p config.EnvironmentPreference) Option {
	return func(f *Finder) { f.environmentPreference = p }
}

// WithCommandRunner overrides the subprocess runner, for tests.
func WithCommandRunner(fn CommandRunner) Option {
	return func(f *Finder) { f.runCmd = fn }
}

// WithStatFunc overrides the mtime lookup, for tests.
func WithStatFunc(fn StatFunc) Option {
	return func(f *Finder) { f.stat = fn }
}

// WithEnvLookup overrides environment-variable lookup, for tests.
func WithEnvLookup(fn EnvLookup) Option {
	return func(f *Finder) { f.getenv = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// Finder discovers and selects Python interpreters per spec.md §4.C.
type Finder struct {
	pythonPreference       config.PythonPreference
	environmentPreference  config.EnvironmentPreference
	getenv                 EnvLookup
	runCmd                 CommandRunner
	stat                   StatFunc
	querier                *Querier
	logger                 *slog.Logger
}

// New creates a Finder with the teacher's "Managed" / "OnlyVirtual"
// defaults (spec.md §3).
func New(opts ...Option) *Finder {
	f := &Finder{
		pythonPreference:      config.PreferenceManaged,
		environmentPreference: config.EnvironmentOnlyVirtual,
		getenv:                os.Getenv,
		runCmd:                defaultRunCmd,
		stat:                  defaultStat,
		logger:                slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	f.querier = NewQuerier(f.runCmd, f.stat)

	return f
}

// Find implements find_best_python_installation: three passes — exact
// request, relax patch→MajorMinor if applicable, fall back to Default —
// returning the first pass that yields a match.
func (f *Finder) Find(ctx context.Context, req Request) (*Interpreter, error) {
	if interp, err := f.findOnePass(ctx, req); err == nil {
		return interp, nil
	} else if !errors.Is(err, ErrNoInterpreter) {
		return nil, err
	}

	if req.Kind == RequestVersion {
		if relaxed, ok := req.Version.Relaxed(); ok {
			relaxedReq := VersionRequest(relaxed)
			if interp, err := f.findOnePass(ctx, relaxedReq); err == nil {
				return interp, nil
			} else if !errors.Is(err, ErrNoInterpreter) {
				return nil, err
			}
		}
	}

	if interp, err := f.findOnePass(ctx, DefaultRequest()); err == nil {
		return interp, nil
	}

	return nil, ErrNoInterpreter
}

// findOnePass runs a single discovery pass: enumerate, filter, query
// lazily, and return the first match. A matching pre-release that the
// request does not admit is held back; the first such one is returned
// only when no other candidate matches.
func (f *Finder) findOnePass(ctx context.Context, req Request) (*Interpreter, error) {
	if req.Kind == RequestFile {
		return f.queryExplicit(ctx, req.Path, SourceProvidedPath)
	}

	if req.Kind == RequestDirectory {
		return f.queryExplicit(ctx, req.Path+"/bin/python3", SourceProvidedPath)
	}

	var firstPrerelease *Interpreter

	for _, cand := range f.candidateSources(req) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !sourceSatisfiesEnvironmentPreference(cand.src, f.environmentPreference) {
			continue
		}

		interp, err := f.querier.Query(ctx, cand.path, cand.src)
		if err != nil {
			if f.isFatalQueryError(err, cand.src) {
				return nil, err
			}

			f.logger.Debug("skipping interpreter candidate", slog.String("path", cand.path), slog.String("error", err.Error()))

			continue
		}

		if req.Kind == RequestImplementation || req.Kind == RequestImplementationVersion {
			if interp.Implementation != req.Implementation {
				continue
			}
		}

		if !interpreterSatisfiesEnvironmentPreference(interp, f.environmentPreference) {
			continue
		}

		vreq := req.Version
		if req.Kind == RequestDefault || req.Kind == RequestAny {
			vreq = version.Request{Kind: version.RequestDefault}
			if req.Kind == RequestAny {
				vreq = version.Request{Kind: version.RequestAny}
			}
		}

		if !vreq.Matches(interp.Major, interp.Minor, interp.Patch, interp.Pre, interp.PreNum, interp.Variant()) {
			continue
		}

		if interp.Pre != version.PreReleaseNone && !vreq.AllowsPrerelease() {
			if firstPrerelease == nil {
				found := interp
				firstPrerelease = &found
			}

			continue
		}

		return &interp, nil
	}

	if firstPrerelease != nil {
		return firstPrerelease, nil
	}

	return nil, ErrNoInterpreter
}

// queryExplicit handles File/Directory requests: the candidate is fully
// explicit, so no source list is consulted, but a failure against an
// active-environment marker is still escalated per spec.md §4.C.
func (f *Finder) queryExplicit(ctx context.Context, path string, src Source) (*Interpreter, error) {
	interp, err := f.querier.Query(ctx, path, src)
	if err != nil {
		return nil, fmt.Errorf("querying explicit interpreter %s: %w", path, err)
	}

	return &interp, nil
}

// isFatalQueryError implements spec.md §4.C's escalation rule: a missing
// or broken interpreter is normally skipped, but a missing file under an
// ActiveEnvironment whose pyvenv.cfg marker exists is fatal.
func (f *Finder) isFatalQueryError(err error, src Source) bool {
	var qe *QueryError
	if !errors.As(err, &qe) {
		return false
	}

	if qe.Class == QueryErrorIO {
		return true
	}

	if qe.Class == QueryErrorMissing && src == SourceActiveEnvironment {
		venv := f.getenv("VIRTUAL_ENV")

		return venv != "" && hasMarkerFile(venv)
	}

	return false
}

func hasMarkerFile(venvDir string) bool {
	_, err := os.Stat(venvDir + "/pyvenv.cfg")

	return err == nil
}
