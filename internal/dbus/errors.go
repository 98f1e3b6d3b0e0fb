package dbus

import (
	"errors"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/callfocus/internal/focus"
)

// ErrorPrefix prefixes the D-Bus error names of the focus error kinds.
const ErrorPrefix = Interface + ".Error."

// errFailed is the generic D-Bus error for errors without a kind.
const errFailed = "org.freedesktop.DBus.Error.Failed"

// remoteError is a focus error received over the bus. It prints the
// daemon's message and matches the focus sentinel of its kind.
type remoteError struct {
	kind    error
	message string
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.kind }

// ErrorName returns the D-Bus error name for err.
func ErrorName(err error) string {
	if kind := focus.ErrorKind(err); kind != "" {
		return ErrorPrefix + kind
	}
	return errFailed
}

// toDBusError converts a command error into a method error reply.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.NewError(ErrorName(err), []any{err.Error()})
}

// fromDBusError converts a method error reply back into an error matching
// the focus sentinels. Other errors are returned unchanged.
func fromDBusError(err error) error {
	if err == nil {
		return nil
	}

	var name string
	var body []any
	var valErr dbus.Error
	var ptrErr *dbus.Error
	switch {
	case errors.As(err, &ptrErr):
		name, body = ptrErr.Name, ptrErr.Body
	case errors.As(err, &valErr):
		name, body = valErr.Name, valErr.Body
	default:
		return err
	}

	kind, ok := strings.CutPrefix(name, ErrorPrefix)
	if !ok {
		return err
	}
	sentinel := focus.ErrorForKind(kind)
	if sentinel == nil {
		return err
	}

	message := sentinel.Error()
	if len(body) > 0 {
		if s, ok := body[0].(string); ok && s != "" {
			message = s
		}
	}
	return &remoteError{kind: sentinel, message: message}
}
