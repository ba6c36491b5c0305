package atomicfile

import (
	"errors"
	"syscall"
)

// isDirSyncUnsupported reports whether err indicates the platform rejected
// fsync on a directory handle (e.g. Windows), rather than a real I/O
// failure that should propagate.
func isDirSyncUnsupported(err error) bool {
	return errors.Is(err, syscall.EINVAL)
}
