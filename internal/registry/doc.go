// Package registry provides durable storage for known rule sources and
// their latest parse outcomes.
//
// The registry is SQLite-backed (WAL mode) and records, per source path,
// the declared package, whether the latest parse succeeded, and the
// rendered error when it did not. Records are stamped with a monotonic
// logical sequence number, never wall-clock timestamps, so the order of
// updates is explicit and replayable.
//
// Writes are expected to come from a single writer (the reload loop or
// the session endpoint, both of which serialize their own writes); reads
// may happen concurrently thanks to WAL.
package registry
