package kvfs

import (
	"context"
	"errors"
	"syscall"

	"github.com/dendrascience/kvfs/fsdb"
)

// Errno maps an error from package fsdb onto the kernel's error vocabulary.
// It returns 0 for a nil error. Anything unrecognised is an I/O error.
func Errno(err error) syscall.Errno {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case errors.As(err, &errno):
		return errno
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	case errors.Is(err, fsdb.ErrInvalidState), errors.Is(err, fsdb.ErrStoreFailure):
		return syscall.EIO
	case errors.Is(err, fsdb.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, fsdb.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, fsdb.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, fsdb.ErrFileTooLarge):
		return syscall.EFBIG
	case errors.Is(err, fsdb.ErrPermission), errors.Is(err, fsdb.ErrReadOnly):
		return syscall.EPERM
	case errors.Is(err, fsdb.ErrInvalidArgument), errors.Is(err, fsdb.ErrInvalidPath):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
