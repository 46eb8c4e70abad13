// Package fault defines the structured error type shared by the watermarking packages.
//
// Callers branch on Kind via IsKind rather than matching error strings.
package fault

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindParse marks structurally invalid mesh input.
	KindParse Kind = "Parse"
	// KindDegenerateGeometry marks a vertex cloud whose principal axes are undefined.
	KindDegenerateGeometry Kind = "DegenerateGeometry"
	// KindCapacityExceeded marks a payload that does not fit into the facet permutation.
	KindCapacityExceeded Kind = "CapacityExceeded"
	// KindTieAmbiguity marks facets sharing a canonical sort key. Non-fatal.
	KindTieAmbiguity Kind = "TieAmbiguity"
	// KindInvalidArgument marks bad caller input (unknown base, empty payload, ...).
	KindInvalidArgument Kind = "InvalidArgument"
	// KindIO marks filesystem failures.
	KindIO Kind = "IO"
)

// Error is the structured error returned by the watermarking packages.
//
// Message is for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Cause
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an *Error of the given kind wrapping cause.
// A nil cause yields the same result as New.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	return e.Kind == kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}

	return e.Kind
}
