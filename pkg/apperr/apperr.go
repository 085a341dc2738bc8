// Package apperr classifies errors by kind, per spec.md §7's error
// taxonomy. Kinds, not types: actors inspect KindOf to decide whether an
// error is user-facing (rendered as a presentation error line) or fatal
// (aborts the actor).
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from spec.md §7.
type Kind int

const (
	// KindInternal is the default for errors not explicitly classified.
	KindInternal Kind = iota
	KindTransport
	KindProtocol
	KindPersistence
	KindAuthorization
	KindPresentation
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindPersistence:
		return "persistence"
	case KindAuthorization:
		return "authorization"
	case KindPresentation:
		return "presentation"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Soft reports whether errors of this kind are user-facing (rendered as an
// error line) rather than fatal to the actor that observed them, per the
// propagation policy in spec.md §7: authorization, presentation, and
// timeout errors are soft; everything else aborts the actor.
func (k Kind) Soft() bool {
	switch k {
	case KindAuthorization, KindPresentation, KindTimeout:
		return true
	default:
		return false
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.err) }
func (e *kindError) Unwrap() error { return e.err }

// Wrap attaches kind to err. Wrap(kind, nil) returns nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Wrapf is Wrap with fmt.Errorf-style formatting of the underlying error.
func Wrapf(kind Kind, format string, args ...any) error {
	return Wrap(kind, fmt.Errorf(format, args...))
}

// KindOf returns the Kind attached to err via Wrap, or KindInternal if err
// was never classified.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindInternal
}

// Is reports whether err was classified with kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
