// Package apperr defines the error kinds shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindValidation    Kind = "validation"
	KindUniqueness    Kind = "uniqueness"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindIntegration   Kind = "integration"
)

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind and message, so package-level
// sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func Uniqueness(format string, args ...any) *Error {
	return New(KindUniqueness, format, args...)
}

func State(format string, args ...any) *Error {
	return New(KindState, format, args...)
}

func Authorization(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

func Integration(err error, format string, args ...any) *Error {
	return Wrap(KindIntegration, err, format, args...)
}

// Sentinels for conditions callers branch on.
var (
	ErrFrameworkDisabled   = State("framework is disabled")
	ErrDuplicateLink       = Uniqueness("compliance link already exists")
	ErrPolicyNotActive     = State("only active policy versions can be acknowledged")
	ErrMonetaryFieldLocked = State("cost fields are locked while the purchase cost is validated")
	ErrBuiltinFramework    = State("controls cannot be added to a built-in framework")
)

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
