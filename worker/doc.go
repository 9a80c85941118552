// Package worker owns the child interpreter process and speaks its
// line-delimited JSON protocol (§4.3, §6.1): one request per line on
// stdin, one response per line on stdout, strictly in request order.
//
// The interpreter process is operator-supplied and out of scope for this
// package; worker only assumes it accepts the five protocol commands
// (init, exec, final_var, show_vars, close) and exposes llm_query,
// llm_query_batched, FINAL_VAR and SHOW_VARS to executed code by
// installing them into the namespace during init. A
// conforming interpreter is expected to run executed code against a
// restricted builtin allowlist so that arbitrary filesystem or process
// access is not implicitly available to model-authored code; enforcing
// that allowlist is the interpreter's responsibility, not this package's.
package worker
