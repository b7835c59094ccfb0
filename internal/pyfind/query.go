package pyfind

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// interpreterScript mirrors the teacher's single-script env.go approach
// (internal/python/env.go's pythonScript) but emits the tagged,
// structured report spec.md §6 describes for the "interpreter query
// protocol": one value per line, in a fixed order.
const interpreterScript = `import sys, sysconfig
info = sys.version_info
print(sys.executable)
print(sys.prefix)
print(getattr(sys, "_base_executable", ""))
print(info.major)
print(info.minor)
print(info.micro)
print(sys.implementation.name)
print(int(not getattr(sys, "_is_gil_enabled", lambda: True)()))
print(int(sys.prefix != sys.base_prefix))
`

const expectedQueryLines = 9

// CommandRunner executes a command and returns its standard output,
// copied verbatim from the teacher's python.CommandRunner seam so the
// same fake-subprocess testing strategy applies here.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// EnvLookup looks up an environment variable, copied from the teacher's
// python.EnvLookup seam.
type EnvLookup func(string) string

// StatFunc stats a path, returning its modification time. Injected for
// testing the mtime-based cache invalidation of spec.md §9.
type StatFunc func(path string) (time.Time, error)

func defaultRunCmd(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func defaultStat(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}

	return info.ModTime(), nil
}

// QueryErrorClass distinguishes the three failure classes of spec.md
// §4.C/§7.
type QueryErrorClass int

const (
	// QueryErrorIO is fatal: discovery must stop entirely.
	QueryErrorIO QueryErrorClass = iota
	// QueryErrorUnexpected is non-fatal: skip this candidate.
	QueryErrorUnexpected
	// QueryErrorMissing is non-fatal, unless the source is an explicit
	// ActiveEnvironment whose marker file exists, in which case the
	// caller escalates it to fatal.
	QueryErrorMissing
)

// QueryError wraps a query failure with its class.
type QueryError struct {
	Class QueryErrorClass
	Path  string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("querying %s: %v", e.Path, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

type cacheEntry struct {
	mtime time.Time
	interp Interpreter
}

// Querier queries candidate executables and memoizes the result by path,
// invalidating the cache entry when the executable's mtime changes, per
// spec.md §9 ("Interpreter query as a side-effecting capability").
type Querier struct {
	runCmd CommandRunner
	stat   StatFunc

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewQuerier creates a Querier. A nil runCmd/stat uses the real
// subprocess/filesystem.
func NewQuerier(runCmd CommandRunner, stat StatFunc) *Querier {
	if runCmd == nil {
		runCmd = defaultRunCmd
	}

	if stat == nil {
		stat = defaultStat
	}

	return &Querier{runCmd: runCmd, stat: stat, cache: make(map[string]cacheEntry)}
}

// Query runs the interpreter query protocol against path, using the
// memoized result if the path's mtime is unchanged since the last query.
func (q *Querier) Query(ctx context.Context, path string, src Source) (Interpreter, error) {
	mtime, statErr := q.stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return Interpreter{}, &QueryError{Class: QueryErrorMissing, Path: path, Err: statErr}
		}

		return Interpreter{}, &QueryError{Class: QueryErrorIO, Path: path, Err: statErr}
	}

	q.mu.Lock()
	if entry, ok := q.cache[path]; ok && entry.mtime.Equal(mtime) {
		q.mu.Unlock()

		return entry.interp, nil
	}
	q.mu.Unlock()

	interp, err := q.query(ctx, path, src)
	if err != nil {
		return Interpreter{}, err
	}

	q.mu.Lock()
	q.cache[path] = cacheEntry{mtime: mtime, interp: interp}
	q.mu.Unlock()

	return interp, nil
}

func (q *Querier) query(ctx context.Context, path string, src Source) (Interpreter, error) {
	output, err := q.runCmd(ctx, path, "-c", interpreterScript)
	if err != nil {
		// A non-zero exit status means the interpreter ran but is broken,
		// so the candidate is skipped; failing to run it at all is I/O.
		class := QueryErrorIO

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			class = QueryErrorUnexpected
		}

		return Interpreter{}, &QueryError{Class: class, Path: path, Err: err}
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) != expectedQueryLines {
		return Interpreter{}, &QueryError{
			Class: QueryErrorUnexpected, Path: path,
			Err: fmt.Errorf("expected %d lines, got %d", expectedQueryLines, len(lines)),
		}
	}

	major, err1 := strconv.Atoi(strings.TrimSpace(lines[3]))
	minor, err2 := strconv.Atoi(strings.TrimSpace(lines[4]))
	patch, err3 := strconv.Atoi(strings.TrimSpace(lines[5]))
	gilDisabled, err4 := strconv.Atoi(strings.TrimSpace(lines[7]))
	isVenv, err5 := strconv.Atoi(strings.TrimSpace(lines[8]))

	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return Interpreter{}, &QueryError{
			Class: QueryErrorUnexpected, Path: path,
			Err: fmt.Errorf("malformed numeric field in query output"),
		}
	}

	return Interpreter{
		Path:           path,
		Executable:     strings.TrimSpace(lines[0]),
		Prefix:         strings.TrimSpace(lines[1]),
		BaseExecutable: strings.TrimSpace(lines[2]),
		Major:          major,
		Minor:          minor,
		Patch:          patch,
		Implementation: Implementation(strings.TrimSpace(lines[6])),
		GILEnabled:     gilDisabled == 0,
		IsVirtualenv:   isVenv == 1 || src.isVirtualLike(),
		Source:         src,
	}, nil
}
