// Package errs provides the error type shared by the builder, the comparer,
// the planner and the connection layer.
//
// Subsystems return *errs.Error so that callers can branch on the kind of a
// failure without importing driver packages:
//
//	if errs.IsNotFound(err) {
//	    log.Printf("skipping unknown parameter %q", errs.KeyOf(err))
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises an error.
type Kind int

const (
	KindUnknown          Kind = iota
	KindBuild                 // invalid pivot, unknown table or column, empty statement
	KindComparison            // comparing elements of different kinds
	KindType                  // unknown type property, no native type for a column
	KindNotFound              // missing parameter, alias or element
	KindConnection            // cannot reach the backend or the session is unusable
	KindQueryFailed           // DBMS rejected a statement
	KindTimeout               // deadline or cancellation
	KindInvalidInput          // bad arguments from the caller
	KindPermissionDenied      // access denied
)

func (k Kind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindComparison:
		return "comparison"
	case KindType:
		return "type"
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	case KindQueryFailed:
		return "query_failed"
	case KindTimeout:
		return "timeout"
	case KindInvalidInput:
		return "invalid_input"
	case KindPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// Error is the error type returned across the module.
type Error struct {
	Kind    Kind
	Message string
	// Key names the missing parameter, column or element for not-found errors.
	Key   string
	Cause error
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

// New creates an *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error around an underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NotFound creates a not-found error carrying the missing key.
func NotFound(key, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Key: key, Message: fmt.Sprintf(format, args...)}
}

// Build creates a build error.
func Build(format string, args ...any) *Error {
	return Newf(KindBuild, format, args...)
}

// --- Predicates ---

func IsBuild(err error) bool            { return KindOf(err) == KindBuild }
func IsComparison(err error) bool       { return KindOf(err) == KindComparison }
func IsType(err error) bool             { return KindOf(err) == KindType }
func IsNotFound(err error) bool         { return KindOf(err) == KindNotFound }
func IsConnection(err error) bool       { return KindOf(err) == KindConnection }
func IsQueryFailed(err error) bool      { return KindOf(err) == KindQueryFailed }
func IsTimeout(err error) bool          { return KindOf(err) == KindTimeout }
func IsInvalidInput(err error) bool     { return KindOf(err) == KindInvalidInput }
func IsPermissionDenied(err error) bool { return KindOf(err) == KindPermissionDenied }

// KindOf extracts the Kind of the first *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// KeyOf returns the key carried by the first not-found error in the chain.
func KeyOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Key
	}
	return ""
}
