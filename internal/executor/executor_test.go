package executor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/strata/internal/executor"
	"github.com/aretw0/strata/internal/processor"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor returns an empty output of the right kind for every node.
type fakeProcessor struct {
	mu     sync.Mutex
	fail   map[string]bool
	onCall func(ctx context.Context, nodeID string)
	calls  []string
}

func (f *fakeProcessor) Process(ctx context.Context, req processor.Request) (domain.Output, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.NodeID)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(ctx, req.NodeID)
	}
	if f.fail[req.NodeID] {
		return domain.Output{}, errors.New("boom")
	}

	switch req.Config.Kind().Output() {
	case domain.DataDataset:
		return domain.DatasetOutput(&domain.Dataset{Source: req.NodeID}), nil
	case domain.DataGraph:
		return domain.GraphOutput(domain.NewGraph(req.GraphID())), nil
	case domain.DataStory:
		return domain.StoryOutput(&domain.Story{GraphID: req.GraphID()}), nil
	}
	return domain.ArtifactOutput(&domain.Artifact{Name: req.NodeID, Format: "json", Content: "{}"}), nil
}

// branchingPlan is ds -> g -> f -> art, and g -> t.
func branchingPlan() *domain.Plan {
	b := dsl.New()
	b.DataSet("ds").Source("people")
	b.Graph("g").From("ds")
	b.Filter("f").From("g")
	b.GraphArtifact("art").From("f")
	b.TreeArtifact("t").From("g")
	return &domain.Plan{ID: "p", ProjectID: "proj", Dag: b.MustBuild()}
}

func statuses(res *domain.RunResult) map[string]domain.ExecutionStatus {
	out := make(map[string]domain.ExecutionStatus)
	for _, st := range res.States {
		out[st.NodeID] = st.Status
	}
	return out
}

func TestTopologicalOrder_TiesBreakByID(t *testing.T) {
	dag := domain.PlanDag{
		Nodes: []domain.PlanNode{{ID: "z"}, {ID: "b"}, {ID: "a"}, {ID: "c"}},
		Edges: []domain.PlanEdge{{Source: "z", Target: "c"}, {Source: "b", Target: "c"}},
	}
	assert.Equal(t, []string{"a", "b", "z", "c"}, executor.TopologicalOrder(dag))
}

func TestExecute_EndToEnd(t *testing.T) {
	rows := memory.NewRowSource(map[string][]domain.Row{
		"people": {
			{"id": "alice", "label": "Alice", "layer": "eng"},
			{"id": "bob", "label": "Bob", "layer": "ops"},
		},
		"links": {{"source": "alice", "target": "bob", "weight": "2"}},
	})
	store := memory.NewStore()

	b := dsl.New()
	b.DataSet("people").Source("people")
	b.DataSet("links").Source("links")
	b.Graph("g").From("people", "links")
	b.GraphArtifact("chart").From("g")
	plan := &domain.Plan{ID: "p", Dag: b.MustBuild()}

	exec := executor.New(processor.New(rows), executor.WithStore(store))
	res, err := exec.Execute(context.Background(), plan, executor.RunContext{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunSucceeded, res.Status)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 4, res.Succeeded)
	assert.NotEmpty(t, res.RunID)

	for _, st := range res.States {
		assert.True(t, strings.HasPrefix(st.OutputRef, "blake3:"), st.NodeID)
		assert.NotNil(t, st.StartedAt)
		assert.NotNil(t, st.FinishedAt)
	}

	// Graph and artifact were persisted
	g, err := store.LoadGraph(context.Background(), "p/g")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)

	art, err := store.LoadArtifact(context.Background(), res.RunID, "chart")
	require.NoError(t, err)
	assert.Contains(t, art.Content, "alice")

	persisted, err := store.ListExecutionStates(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
	for _, st := range persisted {
		assert.Equal(t, domain.StatusSucceeded, st.Status)
	}
}

func TestExecute_Deterministic(t *testing.T) {
	rows := memory.NewRowSource(map[string][]domain.Row{
		"people": {{"id": "b"}, {"id": "a", "belongs_to": "b"}},
	})
	b := dsl.New()
	b.DataSet("ds").Source("people")
	b.Graph("g").From("ds")
	b.TreeArtifact("tree").From("g")
	b.GraphArtifact("chart").From("g").Set("format", "dot")
	plan := &domain.Plan{ID: "p", Dag: b.MustBuild()}

	exec := executor.New(processor.New(rows))
	first, err := exec.Execute(context.Background(), plan, executor.RunContext{})
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), plan, executor.RunContext{})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Transitions, second.Transitions)
	require.Len(t, second.States, len(first.States))
	for i := range first.States {
		assert.Equal(t, first.States[i].NodeID, second.States[i].NodeID)
		assert.Equal(t, first.States[i].OutputRef, second.States[i].OutputRef)
	}
	assert.Equal(t, first.Outputs["chart"], second.Outputs["chart"])
}

func TestExecute_FailureIsolation(t *testing.T) {
	proc := &fakeProcessor{fail: map[string]bool{"f": true}}
	exec := executor.New(proc)

	res, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{})
	require.NoError(t, err)

	assert.Equal(t, map[string]domain.ExecutionStatus{
		"ds":  domain.StatusSucceeded,
		"g":   domain.StatusSucceeded,
		"f":   domain.StatusFailed,
		"art": domain.StatusSkipped,
		"t":   domain.StatusSucceeded,
	}, statuses(res))

	art, ok := res.State("art")
	require.True(t, ok)
	assert.Equal(t, "upstream f did not succeed", art.Reason)

	f, _ := res.State("f")
	assert.Contains(t, f.Reason, "boom")

	// art is terminal and did not succeed
	assert.Equal(t, domain.RunFailed, res.Status)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.NotContains(t, proc.calls, "art")
}

func TestExecute_OrderAndTransitions(t *testing.T) {
	exec := executor.New(&fakeProcessor{})
	res, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{})
	require.NoError(t, err)

	var order []string
	for _, st := range res.States {
		order = append(order, st.NodeID)
	}
	assert.Equal(t, []string{"ds", "g", "f", "art", "t"}, order)

	// Every node moves pending -> running -> succeeded
	require.Len(t, res.Transitions, 10)
	assert.Equal(t, domain.StateTransition{NodeID: "ds", From: domain.StatusPending, To: domain.StatusRunning}, res.Transitions[0])
	assert.Equal(t, domain.StateTransition{NodeID: "ds", From: domain.StatusRunning, To: domain.StatusSucceeded}, res.Transitions[1])
}

func TestExecute_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &fakeProcessor{onCall: func(pctx context.Context, nodeID string) {
		if nodeID == "g" {
			cancel()
			// The node in flight is not interrupted.
			assert.NoError(t, pctx.Err())
		}
	}}
	exec := executor.New(proc)

	res, err := exec.Execute(ctx, branchingPlan(), executor.RunContext{})
	require.NoError(t, err)

	assert.Equal(t, domain.RunCancelled, res.Status)
	assert.Equal(t, map[string]domain.ExecutionStatus{
		"ds":  domain.StatusSucceeded,
		"g":   domain.StatusSucceeded,
		"f":   domain.StatusSkipped,
		"art": domain.StatusSkipped,
		"t":   domain.StatusSkipped,
	}, statuses(res))

	for _, id := range []string{"f", "art", "t"} {
		st, _ := res.State(id)
		assert.Equal(t, "cancelled", st.Reason)
	}
	assert.Equal(t, []string{"ds", "g"}, proc.calls)
}

func TestExecute_InvalidDagRunsNothing(t *testing.T) {
	proc := &fakeProcessor{}
	store := memory.NewStore()
	exec := executor.New(proc, executor.WithStore(store))

	plan := &domain.Plan{ID: "p", Dag: domain.PlanDag{
		Nodes: []domain.PlanNode{{ID: "g", Kind: domain.KindGraph}},
	}}
	res, err := exec.Execute(context.Background(), plan, executor.RunContext{RunID: "r1"})
	require.Error(t, err)
	assert.Nil(t, res)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, proc.calls)

	states, err := store.ListExecutionStates(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, states)
}

// failingRunStore fails every save after the first n.
type failingRunStore struct {
	n     int
	saves int
}

func (s *failingRunStore) SaveExecutionState(ctx context.Context, st domain.ExecutionState) error {
	s.saves++
	if s.saves > s.n {
		return errors.New("disk full")
	}
	return nil
}

func (s *failingRunStore) ListExecutionStates(ctx context.Context, runID string) ([]domain.ExecutionState, error) {
	return nil, nil
}

func TestExecute_StorageFailureIsFatal(t *testing.T) {
	proc := &fakeProcessor{}
	// 5 pending records plus the first running transition
	exec := executor.New(proc, executor.WithRunStore(&failingRunStore{n: 6}))

	res, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{RunID: "r1"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "r1")
	assert.Equal(t, []string{"ds"}, proc.calls)
}

func TestExecute_SkipGraphPersist(t *testing.T) {
	store := memory.NewStore()
	exec := executor.New(&fakeProcessor{}, executor.WithStore(store))

	_, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{SkipGraphPersist: true})
	require.NoError(t, err)

	_, err = store.LoadGraph(context.Background(), "p/g")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = exec.Execute(context.Background(), branchingPlan(), executor.RunContext{})
	require.NoError(t, err)
	_, err = store.LoadGraph(context.Background(), "p/g")
	assert.NoError(t, err)
}

func TestExecute_Hooks(t *testing.T) {
	var events []string
	hooks := domain.LifecycleHooks{
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			events = append(events, "start:"+e.NodeID)
		},
		OnNodeFinish: func(_ context.Context, e *domain.NodeEvent) {
			events = append(events, "finish:"+e.NodeID+":"+string(e.Status))
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			events = append(events, "run:"+string(e.Result.Status))
		},
	}

	var local []string
	exec := executor.New(&fakeProcessor{fail: map[string]bool{"g": true}}, executor.WithLifecycleHooks(hooks))
	_, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{
		Hooks: domain.LifecycleHooks{
			OnRunFinish: func(_ context.Context, e *domain.RunEvent) { local = append(local, e.RunID) },
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"start:ds", "finish:ds:succeeded",
		"start:g", "finish:g:failed",
		"finish:f:skipped",
		"finish:art:skipped",
		"finish:t:skipped",
		"run:failed",
	}, events)
	assert.Len(t, local, 1)
}

func TestOutputRef_ContentAddressed(t *testing.T) {
	a := domain.GraphOutput(&domain.Graph{ID: "g", Nodes: []domain.GraphNode{{ID: "x", Attributes: map[string]string{"b": "1", "a": "2"}}}})
	b := domain.GraphOutput(&domain.Graph{ID: "g", Nodes: []domain.GraphNode{{ID: "x", Attributes: map[string]string{"a": "2", "b": "1"}}}})
	c := domain.GraphOutput(&domain.Graph{ID: "g", Nodes: []domain.GraphNode{{ID: "y"}}})

	ra, err := executor.OutputRef(a)
	require.NoError(t, err)
	rb, _ := executor.OutputRef(b)
	rc, _ := executor.OutputRef(c)

	assert.Equal(t, ra, rb)
	assert.NotEqual(t, ra, rc)
	assert.Len(t, strings.TrimPrefix(ra, "blake3:"), 64)
}

func TestExecute_RewriteFeedsDownstream(t *testing.T) {
	rows := memory.NewRowSource(map[string][]domain.Row{
		"people": {{"id": "alice", "label": "Alice"}},
	})
	store := memory.NewStore()

	b := dsl.New()
	b.DataSet("ds").Source("people")
	b.Graph("g").From("ds")
	b.GraphArtifact("chart").From("g")
	plan := &domain.Plan{ID: "p", Dag: b.MustBuild()}

	exec := executor.New(processor.New(rows), executor.WithStore(store))
	plain, err := exec.Execute(context.Background(), plan, executor.RunContext{})
	require.NoError(t, err)

	var seen []string
	rename := func(_ context.Context, nodeID string, out domain.Output) (domain.Output, error) {
		seen = append(seen, nodeID)
		if out.Graph == nil {
			return out, nil
		}
		g := out.Graph.Clone()
		g.Nodes[0].Label = "Zed"
		out.Graph = g
		return out, nil
	}
	res, err := exec.Execute(context.Background(), plan, executor.RunContext{Rewrite: rename})
	require.NoError(t, err)

	assert.Equal(t, []string{"ds", "g", "chart"}, seen)
	assert.Equal(t, "Zed", res.Outputs["g"].Graph.Nodes[0].Label)
	assert.Contains(t, res.Outputs["chart"].Artifact.Content, "Zed")
	assert.NotContains(t, res.Outputs["chart"].Artifact.Content, "Alice")

	refs := func(r *domain.RunResult) map[string]string {
		out := make(map[string]string)
		for _, st := range r.States {
			out[st.NodeID] = st.OutputRef
		}
		return out
	}
	assert.Equal(t, refs(plain)["ds"], refs(res)["ds"])
	assert.NotEqual(t, refs(plain)["g"], refs(res)["g"])

	art, err := store.LoadArtifact(context.Background(), res.RunID, "chart")
	require.NoError(t, err)
	assert.Contains(t, art.Content, "Zed")

	g, err := store.LoadGraph(context.Background(), "p/g")
	require.NoError(t, err)
	assert.Equal(t, "Zed", g.Nodes[0].Label)
}

func TestExecute_RewriteErrorAborts(t *testing.T) {
	proc := &fakeProcessor{}
	exec := executor.New(proc)

	broken := func(_ context.Context, nodeID string, out domain.Output) (domain.Output, error) {
		if nodeID == "g" {
			return out, errors.New("journal unavailable")
		}
		return out, nil
	}
	res, err := exec.Execute(context.Background(), branchingPlan(), executor.RunContext{Rewrite: broken})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "journal unavailable")
	assert.Equal(t, []string{"ds", "g"}, proc.calls)
}
