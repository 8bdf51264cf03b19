package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// Real FS Tests
//
// These tests verify our Real implementation's helper methods work correctly.
// We're NOT testing os.ReadFile, os.ReadDir etc (that's Go's job).
// We ARE testing:
//   - Exists() - our convenience method
//   - WriteFileAtomic() - our atomic write wrapper
//   - Lock() - our locking implementation
// =============================================================================

// TestReal_Exists_ReturnsFalseForNonExistent verifies that Exists() returns
// (false, nil) for files that don't exist - not an error.
func TestReal_Exists_ReturnsFalseForNonExistent(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	exists, err := fs.Exists(filepath.Join(dir, "does-not-exist.json"))

	if got, want := err, error(nil); !errors.Is(got, want) {
		t.Fatalf("err=%v, want=%v", got, want)
	}

	if got, want := exists, false; got != want {
		t.Fatalf("exists=%v, want=%v", got, want)
	}
}

// TestReal_Exists_ReturnsTrueForFile verifies that Exists() returns
// (true, nil) for files that exist.
func TestReal_Exists_ReturnsTrueForFile(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.json")

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	exists, err := fs.Exists(path)
	if err != nil {
		t.Fatalf("err=%v, want=nil", err)
	}

	if !exists {
		t.Fatal("exists=false, want=true")
	}
}

// TestReal_WriteFileAtomic_ReplacesContentAndMode verifies the file is
// replaced as a whole and ends up with the requested permissions.
func TestReal_WriteFileAtomic_ReplacesContentAndMode(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	if err := os.WriteFile(path, []byte(`{"old": true}`), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := fs.WriteFileAtomic(path, []byte(`{"new": true}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got, want := string(data), `{"new": true}`; got != want {
		t.Fatalf("content=%q, want=%q", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o644); got != want {
		t.Fatalf("mode=%v, want=%v", got, want)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("entries=%d, want=1 (temp file left behind?)", len(entries))
	}
}

// TestReal_Lock_SecondLockTimesOut verifies a held lock blocks a second
// acquisition until the timeout, and can be reacquired after release.
func TestReal_Lock_SecondLockTimesOut(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	path := filepath.Join(t.TempDir(), "pack")

	first, err := fs.Lock(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	_, err = fs.Lock(path)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second lock err=%v, want=%v", err, ErrLockTimeout)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := fs.Lock(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}

	_ = again.Close()
}

// TestReal_Lock_DifferentPathsIndependent verifies locks on different paths
// don't contend.
func TestReal_Lock_DifferentPathsIndependent(t *testing.T) {
	t.Parallel()

	fs := NewReal()
	dir := t.TempDir()

	a, err := fs.Lock(filepath.Join(dir, "bp"))
	if err != nil {
		t.Fatalf("lock bp: %v", err)
	}

	defer func() { _ = a.Close() }()

	b, err := fs.Lock(filepath.Join(dir, "rp"))
	if err != nil {
		t.Fatalf("lock rp: %v", err)
	}

	_ = b.Close()
}
