// Package lock provides the advisory, per-directory file lock spec.md §5
// requires so concurrent invocations targeting the same tool environment
// are serialized. It follows the teacher's atomic-file-op style (a plain
// os.OpenFile with O_EXCL used as a mutex, cleaned up with a deferred
// Close/Remove) rather than reaching for a platform flock syscall, since
// the teacher's codebase has no such dependency and this is a advisory,
// same-host convention, not a durability guarantee.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLocked is returned by TryAcquire when another invocation already
// holds the lock.
var ErrLocked = errors.New("lock: already held by another invocation")

// Lock is a held advisory lock. Release must be called to free it.
type Lock struct {
	path string
}

// path computes the lock file's location: "<dir>/.pymodule.lock".
func path(dir string) string {
	return filepath.Join(dir, ".pymodule.lock")
}

// TryAcquire attempts to take the lock on dir without blocking. Returns
// ErrLocked if the lock file is present. Whether its holder is still
// running is not checked, so a lock file left behind by a crashed
// process keeps the lock held until the file is removed.
func TryAcquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory %s: %w", dir, err)
	}

	lockPath := path(dir)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}

		return nil, fmt.Errorf("creating lock file %s: %w", lockPath, err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	return &Lock{path: lockPath}, nil
}

// Acquire blocks, retrying every 50ms, until the lock on dir is free or
// the timeout elapses.
func Acquire(dir string, timeout time.Duration) (*Lock, error) {
	deadline := time.Now().Add(timeout)

	for {
		l, err := TryAcquire(dir)
		if err == nil {
			return l, nil
		}

		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquiring lock on %s: %w", dir, err)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// Release frees the lock.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock file %s: %w", l.path, err)
	}

	return nil
}
