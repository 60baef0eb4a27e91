package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffGraphs(t *testing.T) {
	base := &Graph{
		ID: "p/g",
		Nodes: []GraphNode{
			{ID: "a", Label: "A"},
			{ID: "b", Label: "B"},
		},
		Edges:  []GraphEdge{{ID: "a->b", Source: "a", Target: "b"}},
		Layers: []GraphLayer{{ID: "core"}},
	}

	tests := []struct {
		name     string
		old      *Graph
		new      *Graph
		wantDiff *GraphDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  base,
			wantDiff: &GraphDiff{
				GraphID:     "p/g",
				AddedNodes:  []string{"a", "b"},
				AddedEdges:  []string{"a->b"},
				AddedLayers: []string{"core"},
			},
		},
		{
			name:     "No Changes",
			old:      base,
			new:      base.Clone(),
			wantDiff: nil,
		},
		{
			name: "Label Change, Node Removed, Edge Removed",
			old:  base,
			new: &Graph{
				ID:     "p/g",
				Nodes:  []GraphNode{{ID: "a", Label: "Alpha"}, {ID: "c"}},
				Layers: []GraphLayer{{ID: "core"}},
			},
			wantDiff: &GraphDiff{
				GraphID:      "p/g",
				AddedNodes:   []string{"c"},
				RemovedNodes: []string{"b"},
				ChangedNodes: []string{"a"},
				RemovedEdges: []string{"a->b"},
			},
		},
		{
			name: "Attribute Change",
			old:  base,
			new: func() *Graph {
				g := base.Clone()
				g.Nodes[1].Attributes = map[string]string{"team": "x"}
				return g
			}(),
			wantDiff: &GraphDiff{GraphID: "p/g", ChangedNodes: []string{"b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffGraphs(tt.old, tt.new)
			assert.Equal(t, tt.wantDiff, got)
		})
	}
}

func TestGraphDiff_JSON_OmitsEmpty(t *testing.T) {
	diff := &GraphDiff{GraphID: "g", AddedNodes: []string{"x"}}
	data, err := json.Marshal(diff)
	require.NoError(t, err)
	assert.JSONEq(t, `{"graph_id":"g","added_nodes":["x"]}`, string(data))
}
