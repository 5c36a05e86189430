// SPDX-License-Identifier: MPL-2.0

package ferr

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"strings"
	"syscall"
)

// zipCorruptionSignals are substrings of errors archive/zip returns for a
// damaged archive. The package does not export typed errors for these
// cases, so the classifier matches on message text, same as it would match
// on a vendor error string it cannot otherwise type-assert.
var zipCorruptionSignals = []string{
	"zip: not a valid zip file",
	"zip: unsupported compression algorithm",
	"zip: checksum error",
	"unexpected EOF",
	"end of central directory record signature not found",
}

// Classify maps a raw platform/transport/codec error to a typed Error, per
// the classifier table: filesystem errors by syscall.Errno, network errors
// by net.OpError/context expiry, known ZIP corruption messages, and
// UserAborted for explicit cancellation. This is the one point where
// unclassified errors cross into the engine's typed taxonomy; every other
// boundary forwards an already-classified *Error.
func Classify(operation string, err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	if errors.Is(err, context.Canceled) {
		return Wrap(UserAborted, operation, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(NetworkError, operation, err)
	}

	if code, ok := classifyErrno(err); ok {
		return Wrap(code, operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Wrap(NetworkError, operation, err)
	}

	if errors.Is(err, os.ErrNotExist) {
		return Wrap(FileNotFound, operation, err)
	}
	if errors.Is(err, os.ErrPermission) {
		return Wrap(PermissionsError, operation, err)
	}

	msg := err.Error()
	for _, signal := range zipCorruptionSignals {
		if strings.Contains(msg, signal) {
			return Wrap(CorruptedZipFile, operation, err)
		}
	}

	return Wrap(Unknown, operation, err)
}

// classifyErrno unwraps fs.PathError/os.SyscallError/os.LinkError down to a
// syscall.Errno and maps the POSIX codes named in the classifier table.
func classifyErrno(err error) (Code, bool) {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return Unknown, false
	}

	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return PermissionsError, true
	case syscall.EBUSY:
		return ResourcesBusy, true
	case syscall.ENOSPC:
		return NoSpaceOnDevice, true
	case syscall.ENOENT:
		return FileNotFound, true
	case syscall.ENOTEMPTY:
		return DirectoryNotEmpty, true
	case syscall.ENOTDIR:
		return NotADirectory, true
	case syscall.ECONNRESET:
		return NetworkError, true
	default:
		return Unknown, false
	}
}

// IsNotExist is a small convenience mirroring os.IsNotExist, kept local so
// callers classifying filesystem walk errors don't need to import both
// packages for one check.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
