//go:build !windows

package artifacts

import (
	"errors"
	"io/fs"
	"syscall"
)

func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}
