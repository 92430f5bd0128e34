package iftcompile

import (
	"errors"
	"fmt"
)

// Kind classifies a compile failure (spec §7). The top-level Compile call
// never recovers silently from an error; every error it returns carries a
// Kind so a caller can distinguish a caller mistake (InvalidArgument,
// FailedPrecondition) from a malformed source font (NotFound) from a bug
// in the compiler itself (Internal).
type Kind int

const (
	// InvalidArgument covers bad input: a glyph id outside the source
	// font, non-disjoint segments under a strategy that requires it, an
	// unknown patch encoding, a too-large child-index list, signed-delta
	// overflow, a glyph id exceeding 24 bits in a glyph-keyed patch, or a
	// malformed axis range (start > end).
	InvalidArgument Kind = iota
	// FailedPrecondition covers calling Compile without a face, or with
	// an initial subset already folded into a prior call's segments.
	FailedPrecondition
	// NotFound covers a referenced font table absent when required, e.g.
	// loca missing when glyf is present.
	NotFound
	// Internal covers inconsistencies the compiler should never produce
	// itself: a subsetter plan that doesn't round-trip, CharStrings
	// preceding the CFF header, or a size computation overflow.
	Internal
	// Unimplemented covers a declared segment-kind combination the
	// compiler does not yet wire up.
	Unimplemented
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case FailedPrecondition:
		return "FailedPrecondition"
	case NotFound:
		return "NotFound"
	case Internal:
		return "Internal"
	case Unimplemented:
		return "Unimplemented"
	default:
		return "Unknown"
	}
}

// Error is the error value Compile returns on failure. It wraps the
// underlying cause (if any) so errors.Is/errors.As still see through to it.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("iftcompile: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("iftcompile: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
