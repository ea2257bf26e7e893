// Package exitcode classifies the fatal errors of a sitelapse run and maps
// them to process exit codes.
//
// # Kinds
//
// Every fatal condition carries a Kind so callers and tests can tell a
// readiness timeout from a capture failure without parsing messages:
//
//	return exitcode.Wrap(exitcode.CaptureFailed, "capturing abc123", err)
//	if exitcode.Is(err, exitcode.ReadinessTimeout) { ... }
//
// # Exit codes
//
// The process exits 0 on success and 1 on any fatal error, whatever its kind.
// Code works with errors wrapped via fmt.Errorf("%w").
package exitcode

import (
	"errors"
	"fmt"
)

// Exit codes for the sitelapse binary.
const (
	// Success indicates the run completed.
	Success = 0

	// ErrGeneral is returned for every fatal error.
	ErrGeneral = 1
)

// Kind names a class of fatal error.
type Kind string

const (
	FatalArgument          Kind = "fatal-argument"           // Bad CLI input
	ConfigInvalid          Kind = "config-invalid"           // Unreadable or invalid config
	WorkspaceFailed        Kind = "workspace-failed"         // Checkout or provider failure
	ReadinessTimeout       Kind = "readiness-timeout"        // Preview never became ready in time
	StreamEndedPrematurely Kind = "stream-ended-prematurely" // Preview closed stderr before ready
	CaptureFailed          Kind = "capture-failed"           // Capture tool failed or wrote nothing
	CopyFailed             Kind = "copy-failed"              // Artifact copy failed
	Internal               Kind = "internal"                 // Bug
)

// Error wraps an error with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new kinded error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new kinded error with printf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a kind and message.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf wraps an existing error with a kind and printf-style message.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the kind from an error.
// Returns Internal for errors that were never classified, "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	return Internal
}

// Is checks if an error has a specific kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Code maps an error to the process exit code.
func Code(err error) int {
	if err == nil {
		return Success
	}
	return ErrGeneral
}

// Usage returns a FatalArgument error.
func Usage(format string, args ...interface{}) *Error {
	return Newf(FatalArgument, format, args...)
}
