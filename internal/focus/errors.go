package focus

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced through Result.
var (
	// ErrInvalidArgument indicates bad caller input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNativeOperationFailed indicates the collaborator reported a failure.
	ErrNativeOperationFailed = errors.New("native operation failed")
	// ErrTimeout indicates the collaborator did not respond in time.
	ErrTimeout = errors.New("native operation timed out")
	// ErrClosed is returned for commands issued after Close.
	ErrClosed = errors.New("focus arbiter closed")
)

// Argument errors. Both match ErrInvalidArgument under errors.Is.
var (
	ErrEmptyCallerID = fmt.Errorf("%w: caller id cannot be empty", ErrInvalidArgument)
	ErrNoCallFocus   = fmt.Errorf("%w: no call focus held", ErrInvalidArgument)
)

// Error kinds, used to carry the taxonomy across process boundaries.
const (
	KindInvalidArgument       = "InvalidArgument"
	KindNativeOperationFailed = "NativeOperationFailed"
	KindTimeout               = "Timeout"
	KindClosed                = "Closed"
)

// ErrorKind returns the taxonomy kind of err, or "" if it has none.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNativeOperationFailed):
		return KindNativeOperationFailed
	case errors.Is(err, ErrClosed):
		return KindClosed
	default:
		return ""
	}
}

// ErrorForKind returns the sentinel for a taxonomy kind, or nil if unknown.
func ErrorForKind(kind string) error {
	switch kind {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNativeOperationFailed:
		return ErrNativeOperationFailed
	case KindTimeout:
		return ErrTimeout
	case KindClosed:
		return ErrClosed
	default:
		return nil
	}
}
