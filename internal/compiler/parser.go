package compiler

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// obligation identifies one pending unit of grammar on the parse stack.
type obligation int

const (
	// obComment discards input until the end of the current line.
	obComment obligation = iota

	// obRoot is the acceptance marker: the parse succeeds when it is the
	// only obligation left at end of input.
	obRoot

	// Single-literal obligations for the "pkg" keyword.
	obPkgP
	obPkgK
	obPkgG

	// obPkgIdentifier accumulates one identifier segment of the package
	// path.
	obPkgIdentifier

	// obOptionalDot accepts a further ".segment" after an identifier, or
	// completes silently on any other character.
	obOptionalDot

	// obSemi expects the terminating ";".
	obSemi

	// Reserved for the fuller rule language. The automaton has no
	// transition handlers for these yet; reaching one is an internal
	// error, never a silent accept.
	obName
	obIdentifier
	obDot
	obNot
	obAnd
	obOr
	obXor
	obEq
	obNewLine
	obBraceOpen
	obBraceClose
	obParenOpen
	obParenClose
	obRule
	obFact
	obThus
	obValue
)

var obligationNames = map[obligation]string{
	obComment:       "Comment",
	obRoot:          "Root",
	obPkgP:          "PkgP",
	obPkgK:          "PkgK",
	obPkgG:          "PkgG",
	obPkgIdentifier: "PkgIdentifier",
	obOptionalDot:   "OptionalDot",
	obSemi:          "Semi",
	obName:          "Name",
	obIdentifier:    "Identifier",
	obDot:           "Dot",
	obNot:           "Not",
	obAnd:           "And",
	obOr:            "Or",
	obXor:           "Xor",
	obEq:            "Eq",
	obNewLine:       "NewLine",
	obBraceOpen:     "BraceOpen",
	obBraceClose:    "BraceClose",
	obParenOpen:     "ParenOpen",
	obParenClose:    "ParenClose",
	obRule:          "Rule",
	obFact:          "Fact",
	obThus:          "Thus",
	obValue:         "Value",
}

func (o obligation) String() string {
	if name, ok := obligationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("obligation(%d)", int(o))
}

// Package is the result of a successful parse.
type Package struct {
	// Path is the dotted package path, NFC normalized.
	Path string
}

// Parser is a single-use pushdown automaton over one input stream.
//
// A Parser is seeded at construction with the obligation stack encoding
// the top-level grammar and is discarded after one parse. It is not safe
// for concurrent use and holds no state across calls; use the package
// level Parse function.
type Parser struct {
	line int
	col  int

	// stack holds pending obligations, last element on top. Every pop has
	// a matching earlier push (or seed entry); an empty stack mid-parse is
	// an internal invariant violation.
	stack []obligation

	// path accumulates the dotted package path across identifier
	// segments. It is never reset; segLen tracks the current segment so
	// "not yet started" is an explicit marker rather than buffer
	// emptiness.
	path   strings.Builder
	segLen int
}

func newParser() *Parser {
	return &Parser{
		line: 1,
		// Seeded bottom-to-top in reverse satisfaction order: the first
		// character of input is tested against obPkgP.
		stack: []obligation{
			obRoot,
			obSemi,
			obOptionalDot,
			obPkgIdentifier,
			obPkgG,
			obPkgK,
			obPkgP,
		},
	}
}

// Parse consumes the whole of src exactly once and returns the declared
// package, or a positioned *Error describing the first failure.
//
// The accepted input is optional whitespace and '#'-prefixed single-line
// comments around exactly one statement:
//
//	pkg my.package.name;
//
// where each segment starts with a letter or underscore and continues
// with letters or digits.
func Parse(src io.Reader) (*Package, error) {
	return newParser().run(src)
}

func (p *Parser) run(src io.Reader) (*Package, error) {
	chars := newRuneReader(src)
	for {
		c, err := chars.next()
		if err == io.EOF {
			break
		}
		p.col++
		if err != nil {
			return nil, p.decodeError(err)
		}
		if err := p.dispatch(c); err != nil {
			return nil, err
		}
	}

	top, err := p.pop()
	if err != nil {
		return nil, err
	}
	if top != obRoot {
		return nil, p.syntaxError("unexpected end of input")
	}
	return &Package{Path: norm.NFC.String(p.path.String())}, nil
}

// dispatch feeds one character to the automaton. A character popped off an
// optional obligation is re-dispatched against the new top, so a single
// call may satisfy several obligations.
func (p *Parser) dispatch(c rune) error {
	for {
		if unicode.IsSpace(c) {
			if c == '\n' {
				p.line++
				p.col = 0
				// Comments terminate only at end of line.
				top, err := p.peek()
				if err != nil {
					return err
				}
				if top == obComment {
					p.drop()
				}
			}
			// All other whitespace is transparent.
			return nil
		}

		top, err := p.peek()
		if err != nil {
			return err
		}

		switch top {
		case obComment:
			// Consumed as a unit up to end of line.
			return nil

		case obPkgP:
			if c == '#' {
				p.push(obComment)
				return nil
			}
			if c == 'p' {
				p.drop()
				return nil
			}
			return p.syntaxErrorf("unexpected input %q, expecting start of package (ex: \"pkg my.package.name;\")", c)

		case obPkgK:
			if c == 'k' {
				p.drop()
				return nil
			}
			return p.syntaxErrorf("unexpected input \"p%c\", expecting start of package (ex: \"pkg my.package.name;\")", c)

		case obPkgG:
			if c == 'g' {
				p.drop()
				return nil
			}
			return p.syntaxErrorf("unexpected input \"pk%c\", expecting start of package (ex: \"pkg my.package.name;\")", c)

		case obPkgIdentifier:
			if p.segLen == 0 {
				if isIdentifierStart(c) {
					p.path.WriteRune(c)
					p.segLen++
					return nil
				}
				return p.syntaxErrorf("unexpected input %q, expecting identifier", c)
			}
			if isIdentifierPart(c) {
				p.path.WriteRune(c)
				p.segLen++
				return nil
			}
			// Segment complete; the same character belongs to whatever
			// comes next.
			p.drop()
			continue

		case obOptionalDot:
			if c == '.' {
				// Another dot means another identifier segment must
				// follow.
				p.path.WriteRune('.')
				p.segLen = 0
				p.push(obPkgIdentifier)
				return nil
			}
			p.drop()
			continue

		case obSemi:
			if c == ';' {
				p.drop()
				return nil
			}
			return p.syntaxErrorf("unexpected input %q, expecting \";\"", c)

		case obRoot:
			if c == '#' {
				p.push(obComment)
				return nil
			}
			return p.syntaxErrorf("unexpected input %q after package declaration", c)

		default:
			// A reserved obligation reached the automaton without a
			// transition handler. Fail loudly.
			return p.internalErrorf("no transition handler for obligation %v", top)
		}
	}
}

func isIdentifierStart(c rune) bool {
	return unicode.IsLetter(c) || c == '_'
}

func isIdentifierPart(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c)
}

func (p *Parser) push(o obligation) {
	p.stack = append(p.stack, o)
}

// drop removes the top obligation. Callers must have observed a non-empty
// stack via peek.
func (p *Parser) drop() {
	p.stack = p.stack[:len(p.stack)-1]
}

func (p *Parser) pop() (obligation, error) {
	if len(p.stack) == 0 {
		return 0, p.internalErrorf("obligation stack empty")
	}
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return top, nil
}

func (p *Parser) peek() (obligation, error) {
	if len(p.stack) == 0 {
		return 0, p.internalErrorf("obligation stack empty")
	}
	return p.stack[len(p.stack)-1], nil
}

func (p *Parser) decodeError(err error) error {
	kind := KindIO
	var ee *EncodingError
	if errors.As(err, &ee) {
		kind = KindEncoding
	}
	return &Error{Line: p.line, Col: p.col, Kind: kind, Err: err}
}

func (p *Parser) syntaxError(msg string) error {
	return &Error{Line: p.line, Col: p.col, Kind: KindSyntax, Message: msg}
}

func (p *Parser) syntaxErrorf(format string, args ...any) error {
	return p.syntaxError(fmt.Sprintf(format, args...))
}

func (p *Parser) internalErrorf(format string, args ...any) error {
	return &Error{Line: p.line, Col: p.col, Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}
