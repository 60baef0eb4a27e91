package ports

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")

	t.Run("Plan Create and Load", func(t *testing.T) {
		plan := samplePlan("contract-plan-"+suffix, "contract-project-"+suffix)
		plan.Version = 1

		// 1. Create (missing plan has version 0)
		require.NoError(t, store.SavePlan(ctx, plan, 0))

		// 2. Load
		loaded, err := store.LoadPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, plan.ID, loaded.ID)
		assert.Equal(t, int64(1), loaded.Version)
		require.Len(t, loaded.Dag.Nodes, 2)
		assert.Equal(t, domain.KindDataSet, loaded.Dag.Nodes[0].Kind)
		assert.Equal(t, "people", loaded.Dag.Nodes[0].Config["source"])
		assert.Equal(t, plan.Dag.Edges, loaded.Dag.Edges)
	})

	t.Run("Plan Compare And Swap", func(t *testing.T) {
		plan := samplePlan("contract-cas-"+suffix, "contract-project-"+suffix)
		plan.Version = 1
		require.NoError(t, store.SavePlan(ctx, plan, 0))

		// Creating twice conflicts
		err := store.SavePlan(ctx, plan, 0)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		// Advancing from the current version succeeds
		next := plan.Clone()
		next.Version = 2
		require.NoError(t, store.SavePlan(ctx, next, 1))

		// A stale writer is rejected and does not clobber the stored plan
		stale := plan.Clone()
		stale.Version = 2
		stale.Name = "stale"
		err = store.SavePlan(ctx, stale, 1)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		loaded, err := store.LoadPlan(ctx, plan.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
		assert.NotEqual(t, "stale", loaded.Name)
	})

	t.Run("Plan Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadPlan(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	})

	t.Run("Plan List By Project", func(t *testing.T) {
		project := "contract-list-" + suffix
		for _, id := range []string{"b-" + suffix, "a-" + suffix} {
			p := samplePlan(id, project)
			p.Version = 1
			require.NoError(t, store.SavePlan(ctx, p, 0))
		}
		other := samplePlan("other-"+suffix, "another-project-"+suffix)
		other.Version = 1
		require.NoError(t, store.SavePlan(ctx, other, 0))

		plans, err := store.ListPlans(ctx, project)
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "a-"+suffix, plans[0].ID)
		assert.Equal(t, "b-"+suffix, plans[1].ID)
	})

	t.Run("Graph Save and Load", func(t *testing.T) {
		g := &domain.Graph{
			ID:               "contract-graph-" + suffix,
			Nodes:            []domain.GraphNode{{ID: "a", Label: "A", Attributes: map[string]string{"k": "v"}}, {ID: "b", BelongsTo: "a"}},
			Edges:            []domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b", Weight: 1.5}},
			Layers:           []domain.GraphLayer{{ID: "core", Color: "#fff"}},
			LastEditSequence: 3,
		}
		require.NoError(t, store.SaveGraph(ctx, g))

		loaded, err := store.LoadGraph(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g, loaded)

		// Mutating the loaded copy must not affect the store
		loaded.Nodes[0].Label = "mutated"
		again, err := store.LoadGraph(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "A", again.Nodes[0].Label)

		_, err = store.LoadGraph(ctx, "non-existent-"+suffix)
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("Journal Append and List", func(t *testing.T) {
		graphID := "contract-journal-" + suffix
		otherID := graphID + "-other"

		last, err := store.LastSequence(ctx, graphID)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), last)

		for seq := uint64(1); seq <= 12; seq++ {
			require.NoError(t, store.AppendEdit(ctx, sampleEdit(graphID, seq)))
		}
		require.NoError(t, store.AppendEdit(ctx, sampleEdit(otherID, 1)))

		edits, err := store.ListEdits(ctx, graphID, 0)
		require.NoError(t, err)
		require.Len(t, edits, 12)
		for i, e := range edits {
			assert.Equal(t, uint64(i+1), e.SequenceNumber, "edits must be in sequence order")
			assert.Equal(t, graphID, e.GraphID)
		}
		assert.JSONEq(t, `"v1"`, string(edits[0].NewValue))

		tail, err := store.ListEdits(ctx, graphID, 10)
		require.NoError(t, err)
		require.Len(t, tail, 3)
		assert.Equal(t, uint64(10), tail[0].SequenceNumber)

		last, err = store.LastSequence(ctx, graphID)
		require.NoError(t, err)
		assert.Equal(t, uint64(12), last)
	})

	t.Run("Journal Rejects Taken Sequence", func(t *testing.T) {
		graphID := "contract-journal-dup-" + suffix
		require.NoError(t, store.AppendEdit(ctx, sampleEdit(graphID, 1)))

		dup := sampleEdit(graphID, 1)
		dup.TargetID = "intruder"
		assert.ErrorIs(t, store.AppendEdit(ctx, dup), domain.ErrSequenceTaken)

		edits, err := store.ListEdits(ctx, graphID, 0)
		require.NoError(t, err)
		require.Len(t, edits, 1)
		assert.Equal(t, "a", edits[0].TargetID, "the first edit must survive")
	})

	t.Run("Execution States", func(t *testing.T) {
		runID := "contract-run-" + suffix
		st := domain.NewExecutionState(runID, "b", domain.KindGraph)
		require.NoError(t, store.SaveExecutionState(ctx, *st))

		now := time.Now().UTC().Truncate(time.Millisecond)
		_, err := st.Transition(domain.StatusRunning, "", now)
		require.NoError(t, err)
		require.NoError(t, store.SaveExecutionState(ctx, *st))

		other := domain.NewExecutionState(runID, "a", domain.KindDataSet)
		require.NoError(t, store.SaveExecutionState(ctx, *other))

		states, err := store.ListExecutionStates(ctx, runID)
		require.NoError(t, err)
		require.Len(t, states, 2)
		assert.Equal(t, "a", states[0].NodeID)
		assert.Equal(t, "b", states[1].NodeID)
		assert.Equal(t, domain.StatusRunning, states[1].Status, "latest state wins")
		require.NotNil(t, states[1].StartedAt)
		assert.True(t, now.Equal(*states[1].StartedAt))

		empty, err := store.ListExecutionStates(ctx, "non-existent-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("Artifacts", func(t *testing.T) {
		runID := "contract-artifact-" + suffix
		art := &domain.Artifact{Name: "diagram", Format: "mermaid", MediaType: "text/vnd.mermaid", Content: "graph TD\n"}
		require.NoError(t, store.SaveArtifact(ctx, runID, "render", art))

		loaded, err := store.LoadArtifact(ctx, runID, "render")
		require.NoError(t, err)
		assert.Equal(t, art, loaded)

		_, err = store.LoadArtifact(ctx, runID, "missing")
		assert.ErrorIs(t, err, domain.ErrArtifactNotFound)
	})
}

func samplePlan(id, projectID string) *domain.Plan {
	return &domain.Plan{
		ID:        id,
		ProjectID: projectID,
		Name:      "contract",
		Status:    domain.PlanDraft,
		Dag: domain.PlanDag{
			Nodes: []domain.PlanNode{
				{ID: "people", Kind: domain.KindDataSet, Config: map[string]any{"source": "people"}},
				{ID: "graph", Kind: domain.KindGraph},
			},
			Edges: []domain.PlanEdge{{ID: "e1", Source: "people", Target: "graph"}},
		},
	}
}

func sampleEdit(graphID string, seq uint64) domain.GraphEdit {
	value, _ := json.Marshal("v" + strconv.FormatUint(seq, 10))
	return domain.GraphEdit{
		ID:             graphID + "-edit",
		GraphID:        graphID,
		TargetType:     domain.TargetNode,
		TargetID:       "a",
		Operation:      domain.OpUpdate,
		FieldName:      "label",
		NewValue:       value,
		SequenceNumber: seq,
		CreatedAt:      time.Now().UTC(),
	}
}
