package util

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
)

// Lockfile is an advisory file lock taken around every state-mutating
// invocation. The installer assumes single-operator usage, so a held lock means
// another invocation is still running and the current one must bail out rather
// than race it on the state file.
type Lockfile struct {
	*flock.Flock
}

// NewLockfile returns a Lockfile for the given path. The lock is not taken
// until TryAcquire is called.
func NewLockfile(filename string) *Lockfile {
	return &Lockfile{
		flock.New(filename),
	}
}

// TryAcquire attempts to take the lock without blocking. If another process
// holds it, an AlreadyLockedError is returned.
func (lockfile *Lockfile) TryAcquire() error {
	locked, err := lockfile.TryLock()
	if err != nil {
		return errors.New(err)
	}

	if !locked {
		return errors.New(AlreadyLockedError{Path: lockfile.Path()})
	}

	return nil
}

// Release releases the lock. Safe to call when the lock was never acquired.
func (lockfile *Lockfile) Release() {
	lockfile.Unlock() //nolint:errcheck
}

// AlreadyLockedError is returned when another invocation holds the advisory lock.
type AlreadyLockedError struct {
	Path string
}

func (err AlreadyLockedError) Error() string {
	return fmt.Sprintf("another invocation is already running (lock file %s is held); wait for it to finish or remove the lock file if you are sure no other process is running", err.Path)
}
