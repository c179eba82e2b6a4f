package fsm

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable failure kind.
type Code string

const (
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeUnauthorizedRole  Code = "UNAUTHORIZED_ROLE"
	CodeHookFailed        Code = "HOOK_FAILED"
	CodeConflict          Code = "CONFLICT"
)

// Error is returned by every failed transition attempt.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code, so the package sentinels can
// be used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidState      = &Error{Code: CodeInvalidState, Message: "invalid state"}
	ErrInvalidTransition = &Error{Code: CodeInvalidTransition, Message: "invalid transition"}
	ErrUnauthorizedRole  = &Error{Code: CodeUnauthorizedRole, Message: "unauthorized role"}
	ErrHookFailed        = &Error{Code: CodeHookFailed, Message: "hook failed"}
	ErrConflict          = &Error{Code: CodeConflict, Message: "concurrent transition conflict"}
)

var (
	ErrInvalidConfig = errors.New("fsm: invalid config")
	ErrNilHook       = errors.New("fsm: hook cannot be nil")
	ErrHookTimeout   = errors.New("hook timed out")
)

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func hookFailed(phase Phase, cause error) *Error {
	return &Error{
		Code:    CodeHookFailed,
		Message: fmt.Sprintf("%s hook failed: %v", phase, cause),
		Cause:   cause,
	}
}

// CodeOf extracts the failure code from err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether repeating the same request may succeed.
// Conflicts always qualify; hook failures may, depending on their cause.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeConflict, CodeHookFailed:
		return true
	}
	return false
}

func IsInvalidStateError(err error) bool      { return errors.Is(err, ErrInvalidState) }
func IsInvalidTransitionError(err error) bool { return errors.Is(err, ErrInvalidTransition) }
func IsUnauthorizedRoleError(err error) bool  { return errors.Is(err, ErrUnauthorizedRole) }
func IsHookFailedError(err error) bool        { return errors.Is(err, ErrHookFailed) }
func IsConflictError(err error) bool          { return errors.Is(err, ErrConflict) }
