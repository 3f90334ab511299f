package termcore

import (
	"errors"
	"fmt"
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// Validation signals bad user input, e.g. an unknown branch path.
	Validation
	// RuntimeState signals an operation invoked in a state it does not support,
	// e.g. an incremental integrity check on the root branch.
	RuntimeState
	// Conversion signals unparseable content, e.g. a bad OWL expression.
	Conversion
	// TransientStore signals a backing store failure that may clear on retry.
	TransientStore
	// LockContention signals a commit lock already taken. Never retried here.
	LockContention
)

// Error is the termcore custom error. UserData carries call-site context,
// e.g. the branch path or the component id that failed.
type Error[T any] struct {
	Code     ErrorCode
	Err      error
	UserData T
}

func (e Error[T]) Error() string {
	return fmt.Sprintf("Error %d: %v, user data: %v", e.Code, e.Err, e.UserData)
}

func (e Error[T]) Unwrap() error {
	return e.Err
}

// Errorf wraps a formatted error with the given code and no user data.
func Errorf(code ErrorCode, format string, args ...any) error {
	return Error[any]{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the ErrorCode of err, or Unknown if err carries none.
func CodeOf(err error) ErrorCode {
	var e Error[any]
	if errors.As(err, &e) {
		return e.Code
	}
	return Unknown
}

// IsCode reports whether err carries the given ErrorCode.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
