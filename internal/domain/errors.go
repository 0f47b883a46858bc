package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every business failure returned by the services unwraps to
// exactly one of these, so callers branch with errors.Is.
var (
	ErrValidation          = errors.New("validation")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrNoResourceAvailable = errors.New("no_resource_available")
	ErrForbidden           = errors.New("forbidden")
	ErrRateLimited         = errors.New("rate_limited")
	ErrStoreFailure        = errors.New("store_failure")
)

// Error carries a user-facing message for one of the kinds above.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newError(ErrInvalidTransition, format, args...)
}

func NoResourceAvailable(format string, args ...any) *Error {
	return newError(ErrNoResourceAvailable, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(ErrForbidden, format, args...)
}

func RateLimited(format string, args ...any) *Error {
	return newError(ErrRateLimited, format, args...)
}

// StoreFailure wraps a persistence error. The message stays generic.
func StoreFailure(op string, cause error) *Error {
	return &Error{Kind: ErrStoreFailure, Message: "failed to " + op, Cause: cause}
}

// Message returns the user-facing text of err, or fallback when err is not
// a domain error.
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		if errors.Is(de.Kind, ErrStoreFailure) {
			return fallback
		}
		return de.Message
	}
	return fallback
}

// Code returns the machine-readable kind of err.
func Code(err error) string {
	for _, kind := range []error{
		ErrValidation, ErrNotFound, ErrInvalidTransition, ErrNoResourceAvailable,
		ErrForbidden, ErrRateLimited, ErrStoreFailure,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal"
}
