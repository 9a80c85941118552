// Package core defines the foundational data model shared across the RLM
// harness: the Context payload handed to a run, the in-memory Run state
// (config, counters, active bindings), REPL execution and subcall records,
// and the small error taxonomy used to classify failures.
//
// Nothing in this package performs I/O. It exists so the orchestrator,
// worker, bridge and trace packages can share one vocabulary without
// import cycles.
package core
