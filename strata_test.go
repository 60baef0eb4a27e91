package strata_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/dsl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orgRows() *memory.RowSource {
	return memory.NewRowSource(map[string][]domain.Row{
		"people": {
			{"id": "alice", "label": "Alice"},
			{"id": "bob", "label": "Bob", "belongs_to": "alice"},
		},
	})
}

func orgDag() domain.PlanDag {
	b := dsl.New()
	b.DataSet("people").Source("people")
	b.Graph("org").From("people")
	b.TreeArtifact("tree").From("org")
	return b.MustBuild()
}

type deltaLog struct {
	mu     sync.Mutex
	deltas []domain.ProjectDelta
}

func (l *deltaLog) Broadcast(_ context.Context, d domain.ProjectDelta) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deltas = append(l.deltas, d)
}

func TestEngine_Execute(t *testing.T) {
	store := memory.NewStore()
	var started []string
	eng := strata.New(
		strata.WithStore(store),
		strata.WithRowSource(orgRows()),
		strata.WithLifecycleHooks(domain.LifecycleHooks{
			OnNodeStart: func(_ context.Context, ev *domain.NodeEvent) { started = append(started, ev.NodeID) },
		}),
	)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })

	res, err := eng.Execute(context.Background(), &domain.Plan{ID: "org", Dag: orgDag()})
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, res.Status)
	assert.Equal(t, []string{"people", "org", "tree"}, started)

	art, err := store.LoadArtifact(context.Background(), res.RunID, "tree")
	require.NoError(t, err)
	assert.Contains(t, art.Content, "bob")
	assert.Same(t, store, eng.Store())
}

func TestEngine_Validate(t *testing.T) {
	eng := strata.New()
	assert.NoError(t, eng.Validate(orgDag()))

	err := eng.Validate(domain.PlanDag{Nodes: []domain.PlanNode{{ID: "x", Kind: "bogus"}}})
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Defects)
}

func TestEngine_Collaboration(t *testing.T) {
	registry := prometheus.NewRegistry()
	deltas := &deltaLog{}
	eng := strata.New(
		strata.WithRowSource(orgRows()),
		strata.WithBroadcaster(deltas),
		strata.WithMetrics(registry),
		strata.WithIdleTimeout(time.Minute),
		strata.WithDrainTimeout(time.Second),
		strata.WithQueueSize(16),
	)
	ctx := context.Background()

	_, err := eng.Route(ctx, "acme", strata.UpdatePlanDag{PlanID: "org", Dag: orgDag()})
	require.NoError(t, err)
	_, err = eng.Route(ctx, "acme", strata.RefreshPlan{PlanID: "org"})
	require.NoError(t, err)

	label, _ := json.Marshal("Robert")
	res, err := eng.Route(ctx, "acme", strata.EditGraph{
		GraphID:    "org/org",
		TargetType: domain.TargetNode,
		TargetID:   "bob",
		Operation:  domain.OpUpdate,
		Field:      "label",
		Value:      label,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Edit.SequenceNumber)

	snap, ok := eng.Snapshot("acme")
	require.True(t, ok)
	bob, _ := snap.Graphs["org/org"].Node("bob")
	assert.Equal(t, "Robert", bob.Label)
	assert.Equal(t, domain.ActorActive, eng.Health("acme").State)
	assert.Equal(t, []string{"acme"}, eng.Coordinator().Projects())

	deltas.mu.Lock()
	assert.Len(t, deltas.deltas, 3)
	deltas.mu.Unlock()

	families, err := registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "strata_actor_commands_total")
	assert.Contains(t, names, "strata_journal_appends_total")

	require.NoError(t, eng.Close(ctx))
	_, err = eng.Route(ctx, "acme", strata.RefreshPlan{PlanID: "org"})
	assert.ErrorIs(t, err, domain.ErrActorStopped)
}

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(strata.Version))
}
