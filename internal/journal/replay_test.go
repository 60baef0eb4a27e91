package journal_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/strata/internal/journal"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// baseGraph is a -> b, with c under b.
func baseGraph() *domain.Graph {
	return &domain.Graph{
		ID: "p/g",
		Nodes: []domain.GraphNode{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B"},
			{ID: "c", BelongsTo: "b"},
		},
		Edges:  []domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b"}},
		Layers: []domain.GraphLayer{{ID: "core"}},
	}
}

func raw(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func edit(seq uint64, typ domain.TargetType, id string, op domain.EditOperation) domain.GraphEdit {
	return domain.GraphEdit{GraphID: "p/g", SequenceNumber: seq, TargetType: typ, TargetID: id, Operation: op}
}

func set(seq uint64, id, field string, value any) domain.GraphEdit {
	e := edit(seq, domain.TargetNode, id, domain.OpUpdate)
	e.FieldName = field
	e.NewValue = raw(value)
	return e
}

func TestApply_Node(t *testing.T) {
	g := baseGraph()

	create := edit(1, domain.TargetNode, "d", domain.OpCreate)
	create.NewValue = raw(domain.GraphNode{Label: "D", BelongsTo: "a"})
	require.NoError(t, journal.Apply(g, create))

	d, ok := g.Node("d")
	require.True(t, ok)
	assert.Equal(t, "D", d.Label)
	assert.Equal(t, "a", d.BelongsTo)
	assert.Equal(t, []string{"a", "b", "c", "d"}, nodeIDs(g))

	assert.ErrorIs(t, journal.Apply(g, create), domain.ErrTargetExists)

	require.NoError(t, journal.Apply(g, set(2, "d", "weight", 2.5)))
	require.NoError(t, journal.Apply(g, set(3, "d", "team", "infra")))
	d, _ = g.Node("d")
	assert.Equal(t, 2.5, d.Weight)
	assert.Equal(t, map[string]string{"team": "infra"}, d.Attributes)

	require.NoError(t, journal.Apply(g, set(4, "d", "team", nil)))
	d, _ = g.Node("d")
	assert.Empty(t, d.Attributes)

	assert.ErrorIs(t, journal.Apply(g, set(5, "zz", "label", "x")), domain.ErrTargetNotFound)
	assert.ErrorIs(t, journal.Apply(g, set(6, "d", "weight", "heavy")), domain.ErrInvalidEdit)
}

func TestApply_DeleteNodeCascades(t *testing.T) {
	g := baseGraph()
	require.NoError(t, journal.Apply(g, edit(1, domain.TargetNode, "b", domain.OpDelete)))

	assert.Empty(t, g.Edges)
	c, _ := g.Node("c")
	assert.Empty(t, c.BelongsTo)

	assert.ErrorIs(t, journal.Apply(g, edit(2, domain.TargetNode, "b", domain.OpDelete)), domain.ErrTargetNotFound)
}

func TestApply_PartitionCycleLeavesGraphUnchanged(t *testing.T) {
	g := baseGraph()
	before := g.Clone()

	err := journal.Apply(g, set(1, "b", "belongs_to", "c"))
	var conflict *domain.MergeConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "b", conflict.NodeID)
	assert.ErrorIs(t, err, domain.ErrPartitionCycle)
	assert.Equal(t, before, g)

	assert.ErrorIs(t, journal.Apply(g, set(2, "b", "belongs_to", "nobody")), domain.ErrTargetNotFound)
}

func TestApply_Edge(t *testing.T) {
	g := baseGraph()

	create := edit(1, domain.TargetEdge, "b->c", domain.OpCreate)
	create.NewValue = raw(domain.GraphEdge{Source: "b", Target: "c", Weight: 3})
	require.NoError(t, journal.Apply(g, create))
	assert.Len(t, g.Edges, 2)

	dangling := edit(2, domain.TargetEdge, "a->x", domain.OpCreate)
	dangling.NewValue = raw(domain.GraphEdge{Source: "a", Target: "x"})
	assert.ErrorIs(t, journal.Apply(g, dangling), domain.ErrTargetNotFound)

	mismatch := edit(3, domain.TargetEdge, "e1", domain.OpCreate)
	mismatch.NewValue = raw(domain.GraphEdge{ID: "e2", Source: "a", Target: "b"})
	assert.ErrorIs(t, journal.Apply(g, mismatch), domain.ErrInvalidEdit)

	retarget := edit(4, domain.TargetEdge, "a->b", domain.OpUpdate)
	retarget.FieldName = "target"
	retarget.NewValue = raw("c")
	require.NoError(t, journal.Apply(g, retarget))
	assert.Equal(t, "c", g.Edges[0].Target)
}

func TestApply_Layer(t *testing.T) {
	g := baseGraph()

	color := edit(1, domain.TargetLayer, "core", domain.OpUpdate)
	color.FieldName = "color"
	color.NewValue = raw("#ff0000")
	require.NoError(t, journal.Apply(g, color))
	assert.Equal(t, "#ff0000", g.Layers[0].Color)

	require.NoError(t, journal.Apply(g, edit(2, domain.TargetLayer, "core", domain.OpDelete)))
	assert.Empty(t, g.Layers)
}

func TestReplay_Fold(t *testing.T) {
	base := baseGraph()

	createD := edit(1, domain.TargetNode, "d", domain.OpCreate)
	createD.NewValue = raw(domain.GraphNode{Label: "D"})
	edits := []domain.GraphEdit{
		set(4, "a", "label", "A2"),
		createD,
		set(2, "ghost", "label", "boo"),
		edit(3, domain.TargetNode, "c", domain.OpDelete),
		edit(5, domain.TargetNode, "missing", domain.OpDelete),
	}

	res := journal.Replay(base, edits)

	// base is untouched
	assert.Equal(t, baseGraph(), base)

	a, _ := res.Graph.Node("a")
	assert.Equal(t, "A2", a.Label)
	_, ok := res.Graph.Node("d")
	assert.True(t, ok)
	_, ok = res.Graph.Node("c")
	assert.False(t, ok)

	require.Len(t, res.Orphans, 1)
	assert.Equal(t, "ghost", res.Orphans[0].Edit.TargetID)
	assert.Equal(t, domain.OrphanTargetMissing, res.Orphans[0].Reason)

	var applied []uint64
	for _, e := range res.Applied {
		applied = append(applied, e.SequenceNumber)
		assert.True(t, e.Applied)
	}
	assert.Equal(t, []uint64{1, 3, 4, 5}, applied)

	assert.Equal(t, uint64(5), res.Graph.LastEditSequence)
	assert.True(t, res.Graph.HasPendingEdits)
}

func TestReplay_Supersession(t *testing.T) {
	base := baseGraph()

	createD := edit(1, domain.TargetNode, "d", domain.OpCreate)
	edits := []domain.GraphEdit{
		createD,
		set(2, "d", "label", "D"),
		edit(3, domain.TargetNode, "d", domain.OpDelete),
		set(4, "a", "label", "first"),
		set(5, "a", "label", "second"),
		set(6, "a", "weight", 1),
	}

	res := journal.Replay(base, edits)

	var skipped []uint64
	for _, e := range res.Superseded {
		skipped = append(skipped, e.SequenceNumber)
	}
	assert.Equal(t, []uint64{1, 2, 4}, skipped)
	assert.Empty(t, res.Orphans)
	assert.False(t, res.Graph.HasPendingEdits)

	a, _ := res.Graph.Node("a")
	assert.Equal(t, "second", a.Label)
	assert.Equal(t, 1.0, a.Weight)
	_, ok := res.Graph.Node("d")
	assert.False(t, ok)
}

func TestReplay_ConflictOrphan(t *testing.T) {
	res := journal.Replay(baseGraph(), []domain.GraphEdit{set(1, "b", "belongs_to", "c")})
	require.Len(t, res.Orphans, 1)
	assert.Equal(t, domain.OrphanConflict, res.Orphans[0].Reason)

	b, _ := res.Graph.Node("b")
	assert.Empty(t, b.BelongsTo)
}

func TestReplay_Idempotent(t *testing.T) {
	createD := edit(1, domain.TargetNode, "d", domain.OpCreate)
	createD.NewValue = raw(domain.GraphNode{BelongsTo: "a"})
	createEdge := edit(2, domain.TargetEdge, "d->b", domain.OpCreate)
	createEdge.NewValue = raw(domain.GraphEdge{Source: "d", Target: "b"})

	edits := []domain.GraphEdit{
		createD,
		createEdge,
		set(3, "a", "label", "renamed"),
		set(4, "x", "label", "orphan"),
		edit(5, domain.TargetEdge, "a->b", domain.OpDelete),
		set(6, "c", "belongs_to", nil),
	}

	once := journal.Replay(baseGraph(), edits)
	twice := journal.Replay(once.Graph, edits)

	assert.Equal(t, once.Graph, twice.Graph)
	assert.Equal(t, once.Orphans, twice.Orphans)

	// an edge whose endpoint is deleted later in the same journal
	createBA := edit(1, domain.TargetEdge, "b->a", domain.OpCreate)
	createBA.NewValue = raw(domain.GraphEdge{Source: "b", Target: "a"})
	edits = []domain.GraphEdit{createBA, edit(2, domain.TargetNode, "a", domain.OpDelete)}

	once = journal.Replay(baseGraph(), edits)
	twice = journal.Replay(once.Graph, edits)

	assert.Empty(t, once.Orphans)
	assert.False(t, once.Graph.HasPendingEdits)
	assert.Equal(t, once.Graph, twice.Graph)
	assert.Empty(t, twice.Orphans)
}

func TestReplay_NodeDeleteCascades(t *testing.T) {
	edgeSet := func(seq uint64, id, field string, value any) domain.GraphEdit {
		e := edit(seq, domain.TargetEdge, id, domain.OpUpdate)
		e.FieldName = field
		e.NewValue = raw(value)
		return e
	}

	tests := []struct {
		name   string
		edits  []domain.GraphEdit
		assert func(t *testing.T, g *domain.Graph)
	}{
		{
			name: "edge update before endpoint delete",
			edits: []domain.GraphEdit{
				edgeSet(1, "a->b", "label", "calls"),
				edit(2, domain.TargetNode, "b", domain.OpDelete),
			},
			assert: func(t *testing.T, g *domain.Graph) {
				assert.Empty(t, g.Edges)
				c, _ := g.Node("c")
				assert.Empty(t, c.BelongsTo)
			},
		},
		{
			name: "retarget onto a node deleted later",
			edits: []domain.GraphEdit{
				edgeSet(1, "a->b", "target", "c"),
				edit(2, domain.TargetNode, "c", domain.OpDelete),
			},
			assert: func(t *testing.T, g *domain.Graph) {
				assert.Empty(t, g.Edges)
				assert.Equal(t, []string{"a", "b"}, nodeIDs(g))
			},
		},
		{
			name: "retarget away before the delete keeps the edge",
			edits: []domain.GraphEdit{
				edgeSet(1, "a->b", "label", "calls"),
				edgeSet(2, "a->b", "target", "c"),
				edit(3, domain.TargetNode, "b", domain.OpDelete),
			},
			assert: func(t *testing.T, g *domain.Graph) {
				require.Len(t, g.Edges, 1)
				assert.Equal(t, "c", g.Edges[0].Target)
				assert.Equal(t, "calls", g.Edges[0].Label)
			},
		},
		{
			name: "partition link to a node deleted later",
			edits: []domain.GraphEdit{
				set(1, "a", "belongs_to", "c"),
				edit(2, domain.TargetNode, "c", domain.OpDelete),
			},
			assert: func(t *testing.T, g *domain.Graph) {
				a, ok := g.Node("a")
				require.True(t, ok)
				assert.Empty(t, a.BelongsTo)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := journal.Replay(baseGraph(), tt.edits)
			assert.Empty(t, once.Orphans)
			tt.assert(t, once.Graph)

			twice := journal.Replay(once.Graph, tt.edits)
			assert.Empty(t, twice.Orphans)
			assert.Equal(t, once.Graph, twice.Graph)
		})
	}
}

func TestReplay_NilBase(t *testing.T) {
	createA := edit(1, domain.TargetNode, "a", domain.OpCreate)
	res := journal.Replay(nil, []domain.GraphEdit{createA})
	assert.Len(t, res.Graph.Nodes, 1)
}

func nodeIDs(g *domain.Graph) []string {
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	return ids
}
