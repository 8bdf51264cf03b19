// Package fs provides the filesystem abstraction used by packdb.
//
// The main types are:
//   - [FS]: interface for the filesystem operations a pack needs
//   - [Real]: production implementation using [os] and atomic writes
//   - [Faults]: testing implementation that fails chosen paths on purpose
//
// Example usage:
//
//	fsys := fs.NewReal()
//	data, err := fsys.ReadFile("entities/zombie.json")
//	if err != nil {
//	    return err
//	}
package fs

import (
	"io"
	"os"
)

// Locker represents a held file lock.
// Call [Locker.Close] to release the lock.
//
// Example:
//
//	lock, err := fsys.Lock("packs/bp")
//	if err != nil {
//	    return err // lock contention or timeout
//	}
//	defer lock.Close() // always release
type Locker interface {
	io.Closer
}

// FS defines the filesystem operations for loading, saving and removing
// pack documents.
//
// All methods mirror their [os] package equivalents but can be intercepted
// for testing with fault injection.
type FS interface {
	// --- Files ---

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic writes data to a file atomically.
	// Uses a temp file + rename so readers never see a partial document.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// --- Directories ---

	// ReadDir reads a directory and returns its entries. See [os.ReadDir].
	// Entries are sorted by name.
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// --- Metadata ---

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// --- Mutations ---

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// --- Locking ---

	// Lock acquires an exclusive advisory lock for path.
	// Blocks until the lock is acquired or returns an error on timeout.
	Lock(path string) (Locker, error)
}
