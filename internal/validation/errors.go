// Package validation checks user input. Every rejection is an *Error whose
// message can be shown to the user as is.
package validation

import (
	"errors"
	"fmt"
)

type Error struct {
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(msg string) error {
	return &Error{msg: msg}
}

func errorf(format string, args ...any) error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err, or an error it wraps, is an input
// rejection.
func IsValidationError(err error) bool {
	var v *Error
	return errors.As(err, &v)
}
