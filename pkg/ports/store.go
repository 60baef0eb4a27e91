package ports

import (
	"context"

	"github.com/aretw0/strata/pkg/domain"
)

// PlanStore persists plans.
type PlanStore interface {
	// LoadPlan retrieves a plan by ID.
	// Returns domain.ErrPlanNotFound if the plan does not exist.
	LoadPlan(ctx context.Context, planID string) (*domain.Plan, error)

	// ListPlans returns every plan of a project, ordered by ID.
	ListPlans(ctx context.Context, projectID string) ([]*domain.Plan, error)

	// SavePlan stores the plan if the currently stored version equals
	// expectedVersion. A missing plan has version 0.
	// Returns an error wrapping domain.ErrVersionConflict otherwise.
	SavePlan(ctx context.Context, plan *domain.Plan, expectedVersion int64) error
}

// GraphStore persists graphs.
type GraphStore interface {
	// LoadGraph retrieves a graph by ID.
	// Returns domain.ErrGraphNotFound if the graph does not exist.
	LoadGraph(ctx context.Context, graphID string) (*domain.Graph, error)

	// SaveGraph stores the graph, replacing any previous version.
	SaveGraph(ctx context.Context, graph *domain.Graph) error
}

// JournalStore persists graph edit journals.
// Sequence numbers are assigned by the caller.
type JournalStore interface {
	// AppendEdit persists one edit under its graph and sequence number.
	AppendEdit(ctx context.Context, edit domain.GraphEdit) error

	// ListEdits returns the edits of a graph with SequenceNumber >= fromSeq,
	// in ascending sequence order.
	ListEdits(ctx context.Context, graphID string, fromSeq uint64) ([]domain.GraphEdit, error)

	// LastSequence returns the highest persisted sequence number of a graph, or 0.
	LastSequence(ctx context.Context, graphID string) (uint64, error)
}

// RunStore persists execution records.
type RunStore interface {
	// SaveExecutionState stores the latest state of a node within a run.
	SaveExecutionState(ctx context.Context, state domain.ExecutionState) error

	// ListExecutionStates returns the latest state of every node of a run, ordered by node ID.
	ListExecutionStates(ctx context.Context, runID string) ([]domain.ExecutionState, error)
}

// ArtifactStore persists rendered artifacts.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, runID, nodeID string, artifact *domain.Artifact) error

	// LoadArtifact returns domain.ErrArtifactNotFound if nothing was stored.
	LoadArtifact(ctx context.Context, runID, nodeID string) (*domain.Artifact, error)
}

// Store bundles every persistence port. Adapters implement all of them.
type Store interface {
	PlanStore
	GraphStore
	JournalStore
	RunStore
	ArtifactStore
}
