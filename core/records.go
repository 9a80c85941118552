package core

import "time"

// ReplExecutionResult is produced once per Worker `exec` call: captured
// stdout/stderr, the ordered list of variable names now defined in the
// interpreter namespace, and elapsed execution time.
type ReplExecutionResult struct {
	Stdout        string
	Stderr        string
	VariableNames []string
	ElapsedMs     int64
}

// SubcallKind distinguishes a single llm_query call from one leg of a
// llm_query_batched call.
type SubcallKind string

const (
	SubcallKindSingle  SubcallKind = "single"
	SubcallKindBatched SubcallKind = "batched"
)

// SubcallRecord is the trace-level record of one LM call issued by code
// running inside the interpreter and routed through the Bridge (§3).
type SubcallRecord struct {
	ID              string
	IterationIndex  int // 0 if no exec was active when the subcall arrived
	ReplExecutionID string
	Kind            SubcallKind
	BatchIndex      int // meaningful only when Kind == SubcallKindBatched
	Model           string
	Prompt          string
	Response        string
	Err             string // populated instead of Response on failure
	Rejected        bool
	StartedAt       time.Time
	LatencyMs       int64
}
