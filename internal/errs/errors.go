// Package errs provides the unified error type used across all of schemadoc.
//
// Every subsystem (metadata sources, the job pipeline, the export writer, …)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a metadata source — wrap native errors:
//	return errs.Wrap(errs.ErrKindTimeout, "describe table timed out", pgErr)
//
//	// In the pipeline — decide whether a target error dooms the job:
//	if errs.IsJobFatal(err) {
//	    return job.fail(err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, MinIO, local filesystem, …) map their
// native errors to one of these kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no such table, no object
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindTimeout                  // context deadline / per-query timeout
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindWriteFailed              // export destination unwritable
	ErrKindCancelled                // job cancelled; normal termination, not a failure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindWriteFailed:
		return "write_failed"
	case ErrKindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all schemadoc subsystems.
// Sources and stores produce it; the pipeline inspects it via the
// Is* predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, unknown table, missing object, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or per-query timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or session failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsWriteFailed reports whether err means the export destination was unwritable.
func IsWriteFailed(err error) bool {
	return KindOf(err) == ErrKindWriteFailed
}

// IsCancelled reports whether err is a cancellation, which is a normal
// termination path rather than a failure.
func IsCancelled(err error) bool {
	return KindOf(err) == ErrKindCancelled
}

// IsJobFatal reports whether err must terminate a whole job rather than
// be recorded against a single target. A lost database session or an
// unwritable destination dooms every remaining target; a timeout or a
// permission error on one table does not.
func IsJobFatal(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindWriteFailed:
		return true
	default:
		return false
	}
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
