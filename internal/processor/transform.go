package processor

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// Transform applies the configured operations in order to a copy of g.
func Transform(id string, g *domain.Graph, cfg *domain.TransformConfig) (*domain.Graph, error) {
	out := g.Clone()
	out.ID = id
	out.LastEditSequence = 0
	out.HasPendingEdits = false

	for i, op := range cfg.Operations {
		switch op.Op {
		case domain.OpInvertEdges:
			invertEdges(out)
		case domain.OpAggregateEdges:
			out.Edges = aggregateEdges(out.Edges, nil)
		case domain.OpDropIsolated:
			dropIsolated(out)
		case domain.OpScaleWeights:
			scaleWeights(out, op.Target, op.Factor)
		case domain.OpSetAttribute:
			setAttribute(out, op.Target, op.Key, op.Value)
		default:
			return nil, fmt.Errorf("operation %d: unknown op %q", i, op.Op)
		}
	}

	out.Normalize()
	return out, nil
}

// invertEdges reverses every edge. Derived IDs follow the new direction;
// explicit IDs are kept.
func invertEdges(g *domain.Graph) {
	for i := range g.Edges {
		e := &g.Edges[i]
		if e.ID == domain.EdgeID(e.Source, e.Target) {
			e.ID = domain.EdgeID(e.Target, e.Source)
		}
		e.Source, e.Target = e.Target, e.Source
	}
}

// aggregateEdges collapses parallel edges into one per (source, target).
// Weights are summed, an unweighted edge counting as 1. The first label and
// layer in ID order are kept and attributes are merged in ID order.
// mapNode, when set, re-points endpoints first; resulting self loops are dropped.
func aggregateEdges(edges []domain.GraphEdge, mapNode func(string) string) []domain.GraphEdge {
	sorted := slices.Clone(edges)
	slices.SortFunc(sorted, func(a, b domain.GraphEdge) int { return strings.Compare(a.ID, b.ID) })

	type acc struct {
		edge  domain.GraphEdge
		count int
	}
	index := map[[2]string]int{}
	var groups []acc

	for _, e := range sorted {
		if mapNode != nil {
			e.Source, e.Target = mapNode(e.Source), mapNode(e.Target)
			if e.Source == e.Target {
				continue
			}
		}
		w := e.Weight
		if w == 0 {
			w = 1
		}
		key := [2]string{e.Source, e.Target}
		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, acc{
				edge: domain.GraphEdge{
					ID:         domain.EdgeID(e.Source, e.Target),
					Source:     e.Source,
					Target:     e.Target,
					Label:      e.Label,
					Layer:      e.Layer,
					Weight:     w,
					Attributes: maps.Clone(e.Attributes),
				},
				count: 1,
			})
			continue
		}
		grp := &groups[i]
		grp.count++
		grp.edge.Weight += w
		if grp.edge.Label == "" {
			grp.edge.Label = e.Label
		}
		if grp.edge.Layer == "" {
			grp.edge.Layer = e.Layer
		}
		grp.edge.Attributes = mergeAttrs(grp.edge.Attributes, e.Attributes)
	}

	out := make([]domain.GraphEdge, len(groups))
	for i, grp := range groups {
		if grp.count > 1 {
			grp.edge.Attributes = mergeAttrs(grp.edge.Attributes, map[string]string{"count": strconv.Itoa(grp.count)})
		}
		out[i] = grp.edge
	}
	return out
}

// dropIsolated removes nodes that have no incident edge and take no part
// in the partition hierarchy.
func dropIsolated(g *domain.Graph) {
	linked := make(map[string]bool, len(g.Nodes))
	for _, e := range g.Edges {
		linked[e.Source] = true
		linked[e.Target] = true
	}
	for _, n := range g.Nodes {
		if n.BelongsTo != "" {
			linked[n.ID] = true
			linked[n.BelongsTo] = true
		}
	}
	g.Nodes = slices.DeleteFunc(g.Nodes, func(n domain.GraphNode) bool { return !linked[n.ID] })
}

func scaleWeights(g *domain.Graph, target string, factor float64) {
	if target == "nodes" {
		for i := range g.Nodes {
			g.Nodes[i].Weight *= factor
		}
		return
	}
	for i := range g.Edges {
		g.Edges[i].Weight *= factor
	}
}

func setAttribute(g *domain.Graph, target, key, value string) {
	if target == "edges" {
		for i := range g.Edges {
			g.Edges[i].Attributes = mergeAttrs(g.Edges[i].Attributes, map[string]string{key: value})
		}
		return
	}
	for i := range g.Nodes {
		g.Nodes[i].Attributes = mergeAttrs(g.Nodes[i].Attributes, map[string]string{key: value})
	}
}
