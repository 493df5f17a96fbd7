package rotee

import (
	"errors"
	"os"
	"syscall"
)

// ErrSinkUnavailable is returned by Sink.Write after a rotation failed to
// open a fresh active file. The already-rotated backup is intact; only new
// writes are refused until the sink is closed.
var ErrSinkUnavailable = errors.New("rotee: file sink unavailable")

// ErrClosed is returned by operations on a closed sink.
var ErrClosed = errors.New("rotee: sink closed")

// PassThroughError wraps a failed write to the pass-through sink (stdout).
// It is fatal for the whole pipeline: a broken pass-through means the host
// no longer wants output.
type PassThroughError struct {
	Err error
}

func (e *PassThroughError) Error() string {
	return "rotee: pass-through write: " + e.Err.Error()
}

func (e *PassThroughError) Unwrap() error { return e.Err }

// isTransient reports whether an IO error is worth a single retry.
// Descriptor exhaustion and interrupted syscalls clear up on their own;
// permission and missing-directory errors do not.
func isTransient(err error) bool {
	if errors.Is(err, os.ErrPermission) || errors.Is(err, os.ErrNotExist) {
		return false
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN)
}
