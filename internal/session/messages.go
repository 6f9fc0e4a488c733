package session

import (
	"errors"

	"github.com/lavignes/roolz/internal/compiler"
)

// Message types exchanged over a session.
const (
	TypeHello  = "hello"
	TypeSubmit = "submit"
	TypeResult = "result"
	TypeError  = "error"
)

// Request is a client frame. Type selects the operation; today only
// "submit" is defined.
type Request struct {
	Type string `json:"type"`

	// Name labels the submission so results can be correlated and the
	// accepted source keyed in the registry. Optional; unnamed
	// submissions get a per-session counter.
	Name string `json:"name,omitempty"`

	// Source is the rule text to compile.
	Source string `json:"source,omitempty"`
}

// Hello is the first server frame on a new session.
type Hello struct {
	Type    string `json:"type"`
	Session string `json:"session"`
}

// Result answers one submission.
type Result struct {
	Type    string       `json:"type"`
	Name    string       `json:"name"`
	OK      bool         `json:"ok"`
	Package string       `json:"package,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ProtocolError reports a malformed or unknown client frame. The session
// stays open.
type ProtocolError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorDetail is the wire form of a positioned parse failure.
type ErrorDetail struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// errorDetail converts a parse failure into its wire form. The position
// and kind travel in their own fields, so Message carries only the bare
// description. Failures that are not positioned compiler errors are
// reported as io failures at the origin.
func errorDetail(err error) *ErrorDetail {
	var pe *compiler.Error
	if errors.As(err, &pe) {
		msg := pe.Message
		if msg == "" && pe.Err != nil {
			msg = pe.Err.Error()
		}
		return &ErrorDetail{
			Line:    pe.Line,
			Col:     pe.Col,
			Kind:    string(pe.Kind),
			Message: msg,
		}
	}
	return &ErrorDetail{
		Line:    1,
		Col:     1,
		Kind:    string(compiler.KindIO),
		Message: err.Error(),
	}
}
