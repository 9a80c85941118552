// Package trace implements the Trace Collector (§4.6 by way of §3, §4.5):
// an accumulator for the structured post-hoc record of a single run
// (config snapshot, context metadata, per-iteration REPL executions,
// subcalls, and finalization outcome), independent of and complementary to
// the flat event stream in package event.
package trace
