// Package orchestrator implements the Harness Orchestrator (§4.8), the
// component that runs the root iteration loop, enforces iteration and
// subcall budgets, binds active iteration/exec context for re-entrant
// Bridge calls, and coordinates finalization through the state machine
// Starting -> Initializing -> Iterating(i) -> CheckingDirective(i) ->
// Finalizing -> Ending, with Failing reachable from any state.
package orchestrator
