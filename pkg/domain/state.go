package domain

import "time"

// ExecutionStatus is the lifecycle position of one node within one run.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusSkipped   ExecutionStatus = "skipped"
)

// Terminal reports whether no further transition is possible.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusSkipped
}

// ExecutionState tracks one node within one run.
// Records are never reused across runs: a new run gets a new RunID.
type ExecutionState struct {
	RunID      string          `json:"run_id"`
	NodeID     string          `json:"node_id"`
	Kind       NodeKind        `json:"kind"`
	Status     ExecutionStatus `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`

	// OutputRef is the content hash of the node output, set on success.
	OutputRef string `json:"output_ref,omitempty"`
}

// NewExecutionState creates a pending record.
func NewExecutionState(runID, nodeID string, kind NodeKind) *ExecutionState {
	return &ExecutionState{
		RunID:  runID,
		NodeID: nodeID,
		Kind:   kind,
		Status: StatusPending,
	}
}

// RunStatus is the aggregate outcome of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunResult is returned by the executor for every run that passed validation.
type RunResult struct {
	RunID     string    `json:"run_id"`
	PlanID    string    `json:"plan_id"`
	Status    RunStatus `json:"status"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`

	// States are in execution (topological) order.
	States []ExecutionState `json:"states"`

	// Transitions is the ordered log of every state change in the run.
	Transitions []StateTransition `json:"transitions"`

	Outputs map[string]Output `json:"-"`
}

// State returns the final state of a node.
func (r *RunResult) State(nodeID string) (ExecutionState, bool) {
	for _, st := range r.States {
		if st.NodeID == nodeID {
			return st, true
		}
	}
	return ExecutionState{}, false
}
