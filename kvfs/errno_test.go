package kvfs

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/dendrascience/kvfs/fsdb"
)

func TestErrno(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want syscall.Errno
	}{
		{"nil", nil, 0},
		{"not found", fsdb.ErrNotFound, syscall.ENOENT},
		{"wrapped not found", fmt.Errorf("lookup: %w", fsdb.ErrNotFound), syscall.ENOENT},
		{"invalid argument", fsdb.ErrInvalidArgument, syscall.EINVAL},
		{"invalid path", fsdb.ErrInvalidPath, syscall.EINVAL},
		{"permission", fsdb.ErrPermission, syscall.EPERM},
		{"read only", fsdb.ErrReadOnly, syscall.EPERM},
		{"already exists", fsdb.ErrAlreadyExists, syscall.EEXIST},
		{"not empty", fsdb.ErrNotEmpty, syscall.ENOTEMPTY},
		{"file too large", fmt.Errorf("write: %w", fsdb.ErrFileTooLarge), syscall.EFBIG},
		{"invalid state", fsdb.ErrInvalidState, syscall.EIO},
		{"store failure", &fsdb.StoreError{Op: "commit", Err: errors.New("disk on fire")}, syscall.EIO},
		{"canceled", context.Canceled, syscall.EINTR},
		{"deadline", fmt.Errorf("acquire: %w", context.DeadlineExceeded), syscall.EINTR},
		{"errno passes through", syscall.ENOSPC, syscall.ENOSPC},
		{"unknown", errors.New("boom"), syscall.EIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Errno(tt.err); got != tt.want {
				t.Errorf("Errno(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrnoName(t *testing.T) {
	if got := errnoName(syscall.ENOENT); got != "ENOENT" {
		t.Errorf("errnoName(ENOENT) = %q", got)
	}
}
