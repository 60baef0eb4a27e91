package domain

import (
	"maps"
	"slices"
)

// GraphDiff represents the element-level changes between two versions of a graph.
// It is designed to be serialized to JSON for partial updates on the client.
type GraphDiff struct {
	// GraphID is always present to identify the target.
	GraphID string `json:"graph_id"`

	AddedNodes   []string `json:"added_nodes,omitempty"`
	RemovedNodes []string `json:"removed_nodes,omitempty"`
	ChangedNodes []string `json:"changed_nodes,omitempty"`

	AddedEdges   []string `json:"added_edges,omitempty"`
	RemovedEdges []string `json:"removed_edges,omitempty"`
	ChangedEdges []string `json:"changed_edges,omitempty"`

	AddedLayers   []string `json:"added_layers,omitempty"`
	RemovedLayers []string `json:"removed_layers,omitempty"`
	ChangedLayers []string `json:"changed_layers,omitempty"`
}

// DiffGraphs calculates the difference between oldGraph and newGraph.
// If oldGraph is nil, everything in newGraph counts as added (initial load).
// It returns nil when nothing changed.
func DiffGraphs(oldGraph, newGraph *Graph) *GraphDiff {
	if newGraph == nil {
		return nil
	}
	if oldGraph == nil {
		oldGraph = &Graph{}
	}

	diff := &GraphDiff{GraphID: newGraph.ID}

	diff.AddedNodes, diff.RemovedNodes, diff.ChangedNodes = diffByID(
		oldGraph.Nodes, newGraph.Nodes,
		func(n GraphNode) string { return n.ID },
		func(a, b GraphNode) bool {
			return a.Label == b.Label && a.Layer == b.Layer && a.Weight == b.Weight &&
				a.BelongsTo == b.BelongsTo && maps.Equal(a.Attributes, b.Attributes)
		},
	)
	diff.AddedEdges, diff.RemovedEdges, diff.ChangedEdges = diffByID(
		oldGraph.Edges, newGraph.Edges,
		func(e GraphEdge) string { return e.ID },
		func(a, b GraphEdge) bool {
			return a.Source == b.Source && a.Target == b.Target && a.Label == b.Label &&
				a.Layer == b.Layer && a.Weight == b.Weight && maps.Equal(a.Attributes, b.Attributes)
		},
	)
	diff.AddedLayers, diff.RemovedLayers, diff.ChangedLayers = diffByID(
		oldGraph.Layers, newGraph.Layers,
		func(l GraphLayer) string { return l.ID },
		func(a, b GraphLayer) bool {
			return a.Label == b.Label && a.Color == b.Color && maps.Equal(a.Attributes, b.Attributes)
		},
	)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffByID[T any](old, new []T, id func(T) string, equal func(a, b T) bool) (added, removed, changed []string) {
	before := make(map[string]T, len(old))
	for _, item := range old {
		before[id(item)] = item
	}
	seen := make(map[string]struct{}, len(new))

	for _, item := range new {
		key := id(item)
		seen[key] = struct{}{}
		prev, ok := before[key]
		switch {
		case !ok:
			added = append(added, key)
		case !equal(prev, item):
			changed = append(changed, key)
		}
	}
	for key := range before {
		if _, ok := seen[key]; !ok {
			removed = append(removed, key)
		}
	}

	slices.Sort(added)
	slices.Sort(removed)
	slices.Sort(changed)
	return added, removed, changed
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *GraphDiff) IsEmpty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 && len(d.ChangedNodes) == 0 &&
		len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0 && len(d.ChangedEdges) == 0 &&
		len(d.AddedLayers) == 0 && len(d.RemovedLayers) == 0 && len(d.ChangedLayers) == 0
}
