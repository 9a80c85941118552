// Package redact implements the size-bounded head/tail truncation with
// content digests described in §4.7. It is a set of pure functions
// parameterized by a core.RedactionPolicy — no state, no I/O — so callers
// can freely reuse the same policy value across a run without
// synchronization.
package redact
