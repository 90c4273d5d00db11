// Package lockfile enforces the scheduler's single-instance invariant (§5):
// only one invocation may be reconciling the Router at a time, so a second,
// overlapping run must fail fast rather than race the first.
package lockfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock holds an open file descriptor carrying an advisory lock on byte
// offset 0, length 1 (§6 Lock file) — a byte-range lock rather than a
// whole-file flock(2), so the same lock file format stays compatible with
// tooling that takes its own byte-ranged locks elsewhere in the file.
type Lock struct {
	file *os.File
}

// TryLock opens path (creating it if absent) and attempts a non-blocking
// exclusive lock on byte 0, length 1. If the lock is already held
// elsewhere, it returns an error without blocking (§4.5 step 3).
func TryLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: opening %s: %w", path, err)
	}

	flock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: 0,
		Start:  0,
		Len:    1,
	}

	if err := unix.FcntlFlock(f.Fd(), unix.F_SETLK, &flock); err != nil {
		f.Close()
		return nil, fmt.Errorf("lockfile: %s is already locked: %w", path, err)
	}

	return &Lock{file: f}, nil
}

// Unlock releases the lock and closes the underlying file.
func (l *Lock) Unlock() error {
	flock := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  0,
		Len:    1,
	}
	if err := unix.FcntlFlock(l.file.Fd(), unix.F_SETLK, &flock); err != nil {
		l.file.Close()
		return fmt.Errorf("lockfile: unlocking: %w", err)
	}
	return l.file.Close()
}
