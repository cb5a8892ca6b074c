// OS-level file locking for cross-process coordination.
//
// The rewriter runs against documents that the authoring application, a
// watcher, or a second rewriter invocation may still have open. A shared
// lock is held while the container image is read and an exclusive lock
// while the patched image is written back, so two processes never
// interleave partial writes on the same document.
//
// fileLock wraps flock(2) / LockFileEx with a mutex that guards the file
// handle's lifetime: the mutex is held across the flock syscall so that
// Fd() cannot race with a concurrent Close on the same *os.File. Callers
// use setFile(nil) before closing the underlying file, which drains any
// in-flight flock and turns later Lock/Unlock calls into no-ops.
package hwpstyle

import (
	"os"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// fileLock coordinates OS-level file locks with safe handle teardown.
type fileLock struct {
	mu sync.Mutex
	f  *os.File
}

// Lock acquires a shared or exclusive flock, blocking until the lock is
// available. Returns nil immediately if the handle has been cleared via
// setFile(nil).
func (l *fileLock) Lock(mode LockMode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.lock(mode)
}

// Unlock releases the flock. Returns nil immediately if the handle has
// been cleared via setFile(nil).
func (l *fileLock) Unlock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	return l.unlock()
}

// setFile swaps the underlying file handle. Passing nil blocks until any
// in-flight flock completes and disables further locking.
func (l *fileLock) setFile(f *os.File) {
	l.mu.Lock()
	l.f = f
	l.mu.Unlock()
}
