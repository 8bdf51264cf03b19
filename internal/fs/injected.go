package fs

import (
	"errors"
	iofs "io/fs"
	"sync"
)

// IsInjected reports whether err (or any error it wraps) was injected by
// [Faults]. Returns false if err is nil.
//
// Injected failures are plain *fs.PathError values carrying a
// syscall.Errno, so os.IsPermission and friends behave as for real
// failures. They are told apart by identity.
func IsInjected(err error) bool {
	if err == nil {
		return false
	}

	var pathErr *iofs.PathError
	if errors.As(err, &pathErr) {
		_, ok := injectedPathErrors.Load(pathErr)

		return ok
	}

	return false
}

var injectedPathErrors sync.Map // map[*fs.PathError]struct{}

// markInjected registers a PathError as injected.
func markInjected(err *iofs.PathError) *iofs.PathError {
	injectedPathErrors.Store(err, struct{}{})

	return err
}
