package compiler

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// ReadError reports a failure reading bytes from the underlying source.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("reading source: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// EncodingError reports bytes that do not form a valid UTF-8 sequence.
// This covers both outright invalid sequences and a multi-byte sequence
// truncated by end of input.
type EncodingError struct {
	Bytes []byte
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("invalid UTF-8 sequence [% x]", e.Bytes)
}

// runeReader turns a byte source into a lazy, forward-only sequence of
// runes, validating UTF-8 incrementally. It never reads ahead of the rune
// currently being decoded.
//
// All errors other than io.EOF are terminal: once next returns a non-EOF
// error, every subsequent call returns the same error.
type runeReader struct {
	src io.Reader
	buf [4]byte

	// pending holds an error returned alongside data by src.Read, to be
	// surfaced on the following pull.
	pending error

	// failed latches the first terminal error.
	failed error
}

func newRuneReader(src io.Reader) *runeReader {
	return &runeReader{src: src}
}

// next returns the next decoded rune. io.EOF signals clean end of input.
// Any other error is terminal: *ReadError for source failures,
// *EncodingError for invalid or truncated sequences.
func (r *runeReader) next() (rune, error) {
	if r.failed != nil {
		return 0, r.failed
	}

	n := 0
	for n < len(r.buf) {
		err := r.readByte(&r.buf[n])
		if err == io.EOF {
			if n == 0 {
				// Clean end of input between characters.
				return 0, io.EOF
			}
			// Input ended mid-sequence.
			return 0, r.fail(&EncodingError{Bytes: cloneBytes(r.buf[:n])})
		}
		if err != nil {
			return 0, r.fail(&ReadError{Err: err})
		}
		n++

		// A valid prefix is necessarily exactly one rune: every shorter
		// prefix already failed validation on an earlier pass.
		if utf8.Valid(r.buf[:n]) {
			c, _ := utf8.DecodeRune(r.buf[:n])
			return c, nil
		}
	}

	// Four bytes and still no valid sequence.
	return 0, r.fail(&EncodingError{Bytes: cloneBytes(r.buf[:])})
}

// readByte pulls exactly one byte from the source. An error returned by
// Read together with data is deferred to the following pull, per the
// io.Reader contract.
func (r *runeReader) readByte(b *byte) error {
	if r.pending != nil {
		err := r.pending
		r.pending = nil
		return err
	}

	var one [1]byte
	for {
		n, err := r.src.Read(one[:])
		if n == 1 {
			if err != nil {
				r.pending = err
			}
			*b = one[0]
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (r *runeReader) fail(err error) error {
	r.failed = err
	return err
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
