package processor_test

import (
	"errors"
	"testing"

	"github.com/aretw0/strata/internal/processor"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph(t *testing.T) {
	people := &domain.Dataset{
		Nodes: []domain.GraphNode{
			{ID: "b", Label: "Bob", Layer: "eng"},
			{ID: "a", Label: "Alice"},
		},
	}
	links := &domain.Dataset{
		Edges: []domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b"}},
	}
	more := &domain.Dataset{
		Nodes: []domain.GraphNode{{ID: "a", Label: "Alice 2"}},
	}

	g, err := processor.BuildGraph("p/g", []*domain.Dataset{people, links, more})
	require.NoError(t, err)

	assert.Equal(t, "p/g", g.ID)
	assert.Equal(t, []domain.GraphNode{
		{ID: "a", Label: "Alice 2"},
		{ID: "b", Label: "Bob", Layer: "eng"},
	}, g.Nodes)
	assert.Len(t, g.Edges, 1)
	assert.Equal(t, []domain.GraphLayer{{ID: "eng"}}, g.Layers, "referenced layers are implied")
}

func TestBuildGraph_DanglingEdge(t *testing.T) {
	ds := &domain.Dataset{
		Nodes: []domain.GraphNode{{ID: "a"}},
		Edges: []domain.GraphEdge{{ID: "a->x", Source: "a", Target: "x"}},
	}
	_, err := processor.BuildGraph("p/g", []*domain.Dataset{ds})
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
}

func TestBuildGraph_PartitionErrors(t *testing.T) {
	unknown := &domain.Dataset{Nodes: []domain.GraphNode{{ID: "a", BelongsTo: "ghost"}}}
	_, err := processor.BuildGraph("p/g", []*domain.Dataset{unknown})
	assert.ErrorIs(t, err, domain.ErrUnknownParent)

	cycle := &domain.Dataset{Nodes: []domain.GraphNode{
		{ID: "a", BelongsTo: "b"},
		{ID: "b", BelongsTo: "a"},
	}}
	_, err = processor.BuildGraph("p/g", []*domain.Dataset{cycle})
	assert.ErrorIs(t, err, domain.ErrPartitionCycle)
}

func mergeGraph(id string, nodes []domain.GraphNode, edges []domain.GraphEdge, layers []domain.GraphLayer) *domain.Graph {
	g := domain.NewGraph(id)
	g.Nodes = append(g.Nodes, nodes...)
	g.Edges = append(g.Edges, edges...)
	g.Layers = append(g.Layers, layers...)
	return g
}

func TestMergeGraphs_LastWriterWins(t *testing.T) {
	g1 := mergeGraph("p/g1",
		[]domain.GraphNode{{ID: "a", Label: "A", Weight: 1, Attributes: map[string]string{"x": "1", "y": "1"}}},
		nil,
		[]domain.GraphLayer{{ID: "eng", Color: "#111"}},
	)
	g2 := mergeGraph("p/g2",
		[]domain.GraphNode{{ID: "a", Layer: "eng", Attributes: map[string]string{"y": "2"}}, {ID: "b"}},
		[]domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b"}},
		[]domain.GraphLayer{{ID: "eng", Label: "Engineering"}},
	)

	m, err := processor.MergeGraphs("p/m", []*domain.Graph{g1, g2})
	require.NoError(t, err)

	a, _ := m.Node("a")
	assert.Equal(t, "A", a.Label, "empty label does not override")
	assert.Equal(t, "eng", a.Layer)
	assert.Equal(t, 1.0, a.Weight)
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, a.Attributes)
	assert.Equal(t, []domain.GraphLayer{{ID: "eng", Label: "Engineering", Color: "#111"}}, m.Layers)

	// Inputs untouched
	assert.Equal(t, map[string]string{"x": "1", "y": "1"}, g1.Nodes[0].Attributes)
}

func TestMergeGraphs_Associative(t *testing.T) {
	g1 := mergeGraph("p/1",
		[]domain.GraphNode{{ID: "a", Label: "A1"}, {ID: "b", Attributes: map[string]string{"k": "1"}}},
		[]domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b", Weight: 1}},
		nil,
	)
	g2 := mergeGraph("p/2",
		[]domain.GraphNode{{ID: "b", Label: "B2", Layer: "ops"}, {ID: "c"}},
		[]domain.GraphEdge{{ID: "a->b", Source: "a", Target: "b", Label: "uses"}},
		[]domain.GraphLayer{{ID: "ops", Label: "Ops"}},
	)
	g3 := mergeGraph("p/3",
		[]domain.GraphNode{{ID: "a", Label: "A3", BelongsTo: "c"}, {ID: "c"}, {ID: "b", Attributes: map[string]string{"k": "3"}}},
		nil,
		[]domain.GraphLayer{{ID: "ops", Color: "#f00"}},
	)

	flat, err := processor.MergeGraphs("p/m", []*domain.Graph{g1, g2, g3})
	require.NoError(t, err)

	inner, err := processor.MergeGraphs("p/m", []*domain.Graph{g1, g2})
	require.NoError(t, err)
	nested, err := processor.MergeGraphs("p/m", []*domain.Graph{inner, g3})
	require.NoError(t, err)

	assert.Equal(t, flat, nested)
}

func TestMergeGraphs_PartitionCycle(t *testing.T) {
	g1 := mergeGraph("p/1", []domain.GraphNode{{ID: "a", BelongsTo: "b"}, {ID: "b"}}, nil, nil)
	g2 := mergeGraph("p/2", []domain.GraphNode{{ID: "b", BelongsTo: "a"}}, nil, nil)

	_, err := processor.MergeGraphs("p/m", []*domain.Graph{g1, g2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartitionCycle)

	var conflict *domain.MergeConflict
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "a", conflict.NodeID)
}
