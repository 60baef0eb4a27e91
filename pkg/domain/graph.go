package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// GraphNode is a vertex of a computed graph.
type GraphNode struct {
	ID     string  `json:"id"`
	Label  string  `json:"label,omitempty"`
	Layer  string  `json:"layer,omitempty"`
	Weight float64 `json:"weight,omitempty"`

	// BelongsTo is the partition parent. A node has at most one parent
	// and the parent relation must be acyclic.
	BelongsTo string `json:"belongs_to,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// GraphEdge is a directed edge of a computed graph.
type GraphEdge struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Label      string            `json:"label,omitempty"`
	Layer      string            `json:"layer,omitempty"`
	Weight     float64           `json:"weight,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// GraphLayer groups nodes and edges for styling and filtering.
type GraphLayer struct {
	ID         string            `json:"id"`
	Label      string            `json:"label,omitempty"`
	Color      string            `json:"color,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Graph is the typed output of Graph-producing plan nodes,
// and the target of user edits.
type Graph struct {
	ID     string       `json:"id"`
	Nodes  []GraphNode  `json:"nodes"`
	Edges  []GraphEdge  `json:"edges"`
	Layers []GraphLayer `json:"layers"`

	// LastEditSequence is the sequence number of the last journal entry
	// reflected in this graph.
	LastEditSequence uint64 `json:"last_edit_sequence"`

	// HasPendingEdits is set when journal entries could not be reconciled
	// against this graph and still need user attention.
	HasPendingEdits bool `json:"has_pending_edits"`
}

// NewGraph creates an empty graph.
func NewGraph(id string) *Graph {
	return &Graph{
		ID:     id,
		Nodes:  []GraphNode{},
		Edges:  []GraphEdge{},
		Layers: []GraphLayer{},
	}
}

// Clone returns a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := *g
	out.Nodes = make([]GraphNode, len(g.Nodes))
	for i, n := range g.Nodes {
		n.Attributes = maps.Clone(n.Attributes)
		out.Nodes[i] = n
	}
	out.Edges = make([]GraphEdge, len(g.Edges))
	for i, e := range g.Edges {
		e.Attributes = maps.Clone(e.Attributes)
		out.Edges[i] = e
	}
	out.Layers = make([]GraphLayer, len(g.Layers))
	for i, l := range g.Layers {
		l.Attributes = maps.Clone(l.Attributes)
		out.Layers[i] = l
	}
	return &out
}

// Normalize sorts nodes, edges and layers by ID so that equal graphs
// serialize identically.
func (g *Graph) Normalize() {
	slices.SortFunc(g.Nodes, func(a, b GraphNode) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(g.Edges, func(a, b GraphEdge) int { return strings.Compare(a.ID, b.ID) })
	slices.SortFunc(g.Layers, func(a, b GraphLayer) int { return strings.Compare(a.ID, b.ID) })
}

// NodeIndex returns the position of the node with the given ID, or -1.
func (g *Graph) NodeIndex(id string) int {
	return slices.IndexFunc(g.Nodes, func(n GraphNode) bool { return n.ID == id })
}

// EdgeIndex returns the position of the edge with the given ID, or -1.
func (g *Graph) EdgeIndex(id string) int {
	return slices.IndexFunc(g.Edges, func(e GraphEdge) bool { return e.ID == id })
}

// LayerIndex returns the position of the layer with the given ID, or -1.
func (g *Graph) LayerIndex(id string) int {
	return slices.IndexFunc(g.Layers, func(l GraphLayer) bool { return l.ID == id })
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (GraphNode, bool) {
	if i := g.NodeIndex(id); i >= 0 {
		return g.Nodes[i], true
	}
	return GraphNode{}, false
}

// RemoveNode deletes a node together with its incident edges.
// Children of the node lose their partition parent.
func (g *Graph) RemoveNode(id string) bool {
	i := g.NodeIndex(id)
	if i < 0 {
		return false
	}
	g.Nodes = slices.Delete(g.Nodes, i, i+1)
	g.Edges = slices.DeleteFunc(g.Edges, func(e GraphEdge) bool {
		return e.Source == id || e.Target == id
	})
	for j := range g.Nodes {
		if g.Nodes[j].BelongsTo == id {
			g.Nodes[j].BelongsTo = ""
		}
	}
	return true
}

// RemoveEdge deletes an edge by ID.
func (g *Graph) RemoveEdge(id string) bool {
	i := g.EdgeIndex(id)
	if i < 0 {
		return false
	}
	g.Edges = slices.Delete(g.Edges, i, i+1)
	return true
}

// RemoveLayer deletes a layer by ID. Nodes and edges keep their layer
// reference as plain data.
func (g *Graph) RemoveLayer(id string) bool {
	i := g.LayerIndex(id)
	if i < 0 {
		return false
	}
	g.Layers = slices.Delete(g.Layers, i, i+1)
	return true
}

// CheckPartitions verifies that every partition parent exists and that the
// parent relation is acyclic. It walks ancestors iteratively, visiting each
// node once.
func (g *Graph) CheckPartitions() error {
	parent := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		parent[n.ID] = n.BelongsTo
	}

	ids := slices.Sorted(maps.Keys(parent))
	for _, id := range ids {
		if p := parent[id]; p != "" {
			if _, ok := parent[p]; !ok {
				return fmt.Errorf("%w: node %s belongs to %s", ErrUnknownParent, id, p)
			}
		}
	}

	const (
		unvisited uint8 = iota
		walking
		done
	)
	state := make(map[string]uint8, len(parent))

	for _, id := range ids {
		var path []string
		cur := id
		for cur != "" && state[cur] == unvisited {
			state[cur] = walking
			path = append(path, cur)
			cur = parent[cur]
		}
		if cur != "" && state[cur] == walking {
			start := slices.Index(path, cur)
			cycle := append(slices.Clone(path[start:]), cur)
			return fmt.Errorf("%w: %s", ErrPartitionCycle, strings.Join(cycle, " -> "))
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return nil
}

// CheckEdges verifies that every edge endpoint names an existing node.
func (g *Graph) CheckEdges() error {
	known := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = struct{}{}
	}
	for _, e := range g.Edges {
		if _, ok := known[e.Source]; !ok {
			return fmt.Errorf("edge %s: source %s: %w", e.ID, e.Source, ErrTargetNotFound)
		}
		if _, ok := known[e.Target]; !ok {
			return fmt.Errorf("edge %s: target %s: %w", e.ID, e.Target, ErrTargetNotFound)
		}
	}
	return nil
}

// EdgeID derives a stable edge identifier from its endpoints.
func EdgeID(source, target string) string {
	return source + "->" + target
}
