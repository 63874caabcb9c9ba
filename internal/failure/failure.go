// Package failure defines the expected failure kinds of the measurement engine.
//
// Optical and occlusion conditions (too little edge signal, a fit outside its
// tolerances, low trace coverage, a contour leaving its region) are reported as
// *Error values that match the Err* sentinels with errors.Is. Programming errors
// such as mismatched buffer sizes are not represented here; they panic.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies an expected failure.
type Kind int

const (
	// KindInsufficientSignal means the edge map or gradient energy was too sparse.
	KindInsufficientSignal Kind = iota + 1
	// KindOutOfTolerance means a solved scale, rotation or residual exceeded its limit.
	KindOutOfTolerance
	// KindLowCoverage means too few rays found an edge.
	KindLowCoverage
	// KindOutOfBounds means a placed contour left its region of interest.
	KindOutOfBounds
)

func (k Kind) String() string {
	switch k {
	case KindInsufficientSignal:
		return "insufficient signal"
	case KindOutOfTolerance:
		return "out of tolerance"
	case KindLowCoverage:
		return "low coverage"
	case KindOutOfBounds:
		return "out of bounds"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrInsufficientSignal = &Error{Kind: KindInsufficientSignal}
	ErrOutOfTolerance     = &Error{Kind: KindOutOfTolerance}
	ErrLowCoverage        = &Error{Kind: KindLowCoverage}
	ErrOutOfBounds        = &Error{Kind: KindOutOfBounds}
)

// Error is an expected, recoverable engine failure.
type Error struct {
	Kind   Kind
	Stage  string // component that rejected, e.g. "arcfit"
	Detail string
}

// New returns an *Error of the given kind.
func New(kind Kind, stage, format string, args ...any) error {
	return &Error{Kind: kind, Stage: stage, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Stage == "" && e.Detail == "" {
		return e.Kind.String()
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Detail)
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind carried by err, or 0 if err is not an engine failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
