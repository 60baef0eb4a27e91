package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPlanNotFound is returned when a plan ID cannot be found in the store.
var ErrPlanNotFound = errors.New("plan not found")

// ErrForeignPlan is returned when a plan ID is owned by another project.
// It matches ErrPlanNotFound: projects never see each other's plans.
var ErrForeignPlan = fmt.Errorf("plan owned by another project: %w", ErrPlanNotFound)

// ErrGraphNotFound is returned when a graph ID cannot be found in the store.
var ErrGraphNotFound = errors.New("graph not found")

// ErrArtifactNotFound is returned when no artifact was stored for a run/node pair.
var ErrArtifactNotFound = errors.New("artifact not found")

// ErrVersionConflict is returned when an optimistic version check fails.
var ErrVersionConflict = errors.New("version conflict")

var (
	// ErrInvalidPlan is the root of every plan DAG validation failure.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrUnknownKind is returned when a node kind is not one of the known kinds.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrInvalidConfig is returned when a node config cannot be decoded or fails validation.
	ErrInvalidConfig = errors.New("invalid node config")
)

var (
	// ErrSchemaMismatch is returned when a datasource lacks a column its role requires.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMalformedRow marks a row that could not be normalized.
	ErrMalformedRow = errors.New("malformed row")
	// ErrDatasourceNotFound is returned by row sources for unknown datasource names.
	ErrDatasourceNotFound = errors.New("datasource not found")
)

var (
	ErrTargetNotFound = errors.New("edit target not found")
	ErrTargetExists   = errors.New("edit target already exists")
	ErrInvalidEdit    = errors.New("invalid edit")
	ErrPartitionCycle = errors.New("partition cycle")
	ErrUnknownParent  = errors.New("partition parent not found")
	// ErrSequenceTaken is returned by journal stores when an edit reuses a
	// sequence number already persisted for its graph.
	ErrSequenceTaken = errors.New("edit sequence already taken")
)

// ErrIllegalTransition is returned when an ExecutionState is moved backwards
// or across a transition the lifecycle does not allow.
var ErrIllegalTransition = errors.New("illegal execution state transition")

var (
	// ErrActorStopped is returned when a command reaches an actor that is draining or stopped.
	ErrActorStopped = errors.New("project actor stopped")
	// ErrCancelled is returned for queued commands that were not processed before the drain deadline.
	ErrCancelled = errors.New("command cancelled")
)

// Defect is a single problem found while validating a plan DAG.
type Defect struct {
	NodeID  string `json:"node_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`
	Message string `json:"message"`
}

func (d Defect) String() string {
	switch {
	case d.NodeID != "":
		return fmt.Sprintf("node %s: %s", d.NodeID, d.Message)
	case d.EdgeID != "":
		return fmt.Sprintf("edge %s: %s", d.EdgeID, d.Message)
	}
	return d.Message
}

// ValidationError lists every defect that made a plan DAG invalid.
type ValidationError struct {
	Defects []Defect `json:"defects"`
}

func (e *ValidationError) Error() string {
	if len(e.Defects) == 1 {
		return "invalid plan: " + e.Defects[0].String()
	}
	parts := make([]string, len(e.Defects))
	for i, d := range e.Defects {
		parts[i] = d.String()
	}
	return fmt.Sprintf("invalid plan: %d defects:\n- %s", len(e.Defects), strings.Join(parts, "\n- "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPlan }

// ImportError wraps a failure to read or normalize a datasource.
type ImportError struct {
	Source string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Source, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// ProcessorError wraps a failure raised while processing a node.
type ProcessorError struct {
	NodeID string
	Kind   NodeKind
	Err    error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s node %s: %v", e.Kind, e.NodeID, e.Err)
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// MergeConflict is raised when merged graphs cannot be reconciled,
// e.g. when their partition memberships form a cycle.
type MergeConflict struct {
	NodeID string
	Reason string
	Err    error
}

func (e *MergeConflict) Error() string {
	if e.NodeID == "" {
		return "merge conflict: " + e.Reason
	}
	return fmt.Sprintf("merge conflict at %s: %s", e.NodeID, e.Reason)
}

func (e *MergeConflict) Unwrap() error {
	if e.Err == nil {
		return ErrPartitionCycle
	}
	return e.Err
}

// VersionConflict is returned when a plan mutation carried a stale version.
// Current holds the authoritative plan so the caller can rebase.
type VersionConflict struct {
	PlanID   string `json:"plan_id"`
	Expected int64  `json:"expected"`
	Actual   int64  `json:"actual"`
	Current  *Plan  `json:"current,omitempty"`
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("version conflict on plan %s: expected %d, current %d", e.PlanID, e.Expected, e.Actual)
}

func (e *VersionConflict) Unwrap() error { return ErrVersionConflict }
