package fs

import (
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
)

// PathState is the fault state of a path.
type PathState int

const (
	// PathNormal means no fault. This is the zero value, so untracked paths
	// are normal.
	PathNormal PathState = iota
	// PathIOError fails every operation on the path with EIO.
	PathIOError
	// PathReadOnly fails writes and removals with EROFS; reads pass.
	PathReadOnly
	// PathNoPermission fails every operation on the path with EACCES.
	PathNoPermission
)

// Faults wraps an [FS] and fails operations on chosen paths.
//
// A state set on a directory applies to everything below it. Injected errors
// are real OS errors (syscall.Errno wrapped in os.PathError), so
// os.IsPermission and errors.Is behave as with real failures, and
// [IsInjected] tells them apart.
//
// Use [Faults.Injected] to inspect how many faults were injected.
type Faults struct {
	fs FS

	mu         sync.RWMutex
	pathStates map[string]PathState

	injected atomic.Int64
}

// NewFaults creates a Faults filesystem wrapping fs.
func NewFaults(fs FS) *Faults {
	return &Faults{
		fs:         fs,
		pathStates: make(map[string]PathState),
	}
}

// SetPathState sets the fault state for path and everything below it.
// [PathNormal] clears it.
func (f *Faults) SetPathState(path string, state PathState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path = filepath.Clean(path)

	if state == PathNormal {
		delete(f.pathStates, path)

		return
	}

	f.pathStates[path] = state
}

// Injected returns the number of injected failures so far.
func (f *Faults) Injected() int64 {
	return f.injected.Load()
}

// stateFor returns the state of the closest configured ancestor of path.
func (f *Faults) stateFor(path string) PathState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	p := filepath.Clean(path)

	for {
		if state, ok := f.pathStates[p]; ok {
			return state
		}

		parent := filepath.Dir(p)
		if parent == p {
			return PathNormal
		}

		p = parent
	}
}

func (f *Faults) check(op, path string, write bool) error {
	var errno syscall.Errno

	switch f.stateFor(path) {
	case PathIOError:
		errno = syscall.EIO
	case PathNoPermission:
		errno = syscall.EACCES
	case PathReadOnly:
		if !write {
			return nil
		}

		errno = syscall.EROFS
	default:
		return nil
	}

	f.injected.Add(1)

	return markInjected(&iofs.PathError{Op: op, Path: path, Err: errno})
}

// ReadFile fails for faulted paths, otherwise delegates.
func (f *Faults) ReadFile(path string) ([]byte, error) {
	if err := f.check("open", path, false); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

// WriteFileAtomic fails for faulted paths, otherwise delegates.
func (f *Faults) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check("write", path, true); err != nil {
		return err
	}

	return f.fs.WriteFileAtomic(path, data, perm)
}

// ReadDir fails for faulted paths, otherwise delegates.
func (f *Faults) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check("readdirent", path, false); err != nil {
		return nil, err
	}

	return f.fs.ReadDir(path)
}

// MkdirAll fails for faulted paths, otherwise delegates.
func (f *Faults) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check("mkdir", path, true); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

// Stat fails for faulted paths, otherwise delegates.
func (f *Faults) Stat(path string) (os.FileInfo, error) {
	if err := f.check("stat", path, false); err != nil {
		return nil, err
	}

	return f.fs.Stat(path)
}

// Exists fails for faulted paths, otherwise delegates.
func (f *Faults) Exists(path string) (bool, error) {
	if err := f.check("stat", path, false); err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

// Remove fails for faulted paths, otherwise delegates.
func (f *Faults) Remove(path string) error {
	if err := f.check("remove", path, true); err != nil {
		return err
	}

	return f.fs.Remove(path)
}

// Lock fails for faulted paths, otherwise delegates.
func (f *Faults) Lock(path string) (Locker, error) {
	if err := f.check("flock", path, true); err != nil {
		return nil, err
	}

	return f.fs.Lock(path)
}

// Compile-time interface check.
var _ FS = (*Faults)(nil)
