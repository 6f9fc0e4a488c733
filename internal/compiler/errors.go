package compiler

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes parse failures.
type ErrorKind string

const (
	// KindIO indicates a failure reading the source.
	KindIO ErrorKind = "io"

	// KindEncoding indicates bytes that are not valid UTF-8.
	KindEncoding ErrorKind = "encoding"

	// KindSyntax indicates input that satisfies no transition of the
	// current obligation.
	KindSyntax ErrorKind = "syntax"

	// KindInternal indicates an invariant violation in the parser itself,
	// e.g. an unexpectedly empty obligation stack. It should never surface
	// from a consistent grammar table.
	KindInternal ErrorKind = "internal"
)

// Error is a positioned parse failure.
//
// Line and Col are 1-based and refer to the character at which the failure
// was detected. For KindIO and KindEncoding, Err carries the underlying
// decode failure; for the other kinds, Message carries an
// expectation-specific description.
type Error struct {
	Line    int
	Col     int
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d:%d: %s: %v", e.Line, e.Col, e.Kind, e.Err)
	}
	return fmt.Sprintf("%d:%d: %s: %s", e.Line, e.Col, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSyntaxError reports whether err is a parse failure of kind syntax.
// Uses errors.As to handle wrapped errors.
func IsSyntaxError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindSyntax
}

// IsEncodingError reports whether err is a parse failure of kind encoding.
func IsEncodingError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindEncoding
}
