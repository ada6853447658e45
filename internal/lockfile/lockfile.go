// ABOUTME: Advisory file lock for cross-process coordination
// ABOUTME: flock(LOCK_EX|LOCK_NB) in a bounded retry loop; OS releases on crash
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/recallhq/recall/internal/memerr"
)

// DefaultTimeout bounds lock acquisition for every caller that does not
// override it.
const DefaultTimeout = 5 * time.Second

const pollInterval = 100 * time.Millisecond

// Lock is an advisory lock backed by flock on a dedicated lock file. The
// kernel drops the lock if the holding process dies, so a crashed writer
// never wedges the ledger.
type Lock struct {
	path string
	file *os.File
}

// New prepares a lock at path without acquiring it.
func New(path string) *Lock {
	return &Lock{path: path}
}

// Acquire blocks until the lock is held or timeout elapses. A timeout is
// reported as memerr.ErrLockTimeout so callers can tell contention from I/O
// trouble.
func (l *Lock) Acquire(timeout time.Duration) error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock dir: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
		if err != nil {
			return fmt.Errorf("opening lock file %s: %w", l.path, err)
		}

		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			// Best effort: record the holder for debugging.
			_, _ = fmt.Fprintf(f, "%d", os.Getpid())
			l.file = f
			return nil
		}
		_ = f.Close()

		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			return fmt.Errorf("flock %s: %w", l.path, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s after %s", memerr.ErrLockTimeout, l.path, timeout)
		}
		time.Sleep(pollInterval)
	}
}

// Release drops the lock. Safe to call when not held.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}

// Held reports whether this process currently holds the lock.
func (l *Lock) Held() bool {
	return l.file != nil
}

// WithLock acquires the lock at path, runs fn, and releases on every exit
// path including panics.
func WithLock(path string, timeout time.Duration, fn func() error) error {
	lock := New(path)
	if err := lock.Acquire(timeout); err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}
