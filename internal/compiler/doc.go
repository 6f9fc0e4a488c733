// Package compiler implements the roolz rule-language front end.
//
// The front end is a single-pass, position-tracking automaton that fuses
// lexing and parsing into one character-at-a-time scan over the input.
// There is no token stream and no recursive descent: an explicit stack of
// pending grammar obligations encodes the grammar's call structure, so
// deeply nested input can never exhaust the goroutine stack.
//
// ARCHITECTURE:
//
// Byte-to-rune decoding:
// Input is any io.Reader. A runeReader pulls bytes one at a time into a
// 4-byte scratch buffer and emits a rune as soon as the accumulated prefix
// validates as UTF-8. The whole input is never buffered; the reader holds
// only the scratch buffer and the source handle.
//
// Obligation stack:
// The parser seeds its stack with the top-level grammar in reverse
// satisfaction order, so the first character of input is tested against the
// topmost, most-immediate obligation. Each non-whitespace character does
// exactly one of:
//   - consume and pop (a single literal matched)
//   - consume and stay (grow the identifier accumulator)
//   - pop without consuming and re-dispatch against the new top (optional
//     obligations complete the instant a non-matching character appears)
//   - push a new obligation (entering a sub-construct, e.g. a comment)
//   - fail with a positioned syntax error
//
// The parse succeeds iff the stack has collapsed to exactly the root
// acceptance marker at end of input.
//
// INVARIANTS:
//   - Strictly single-threaded; one parser instance per Parse call, no
//     state shared across calls.
//   - Positions are 1-based (line, column); '\n' advances the line and
//     resets the column.
//   - The first error ends the parse. No recovery, no multi-error reports.
//   - An empty obligation stack mid-parse is an internal invariant
//     violation, never reachable from user input.
package compiler
