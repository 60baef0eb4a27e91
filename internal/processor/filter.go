package processor

import (
	"slices"

	"github.com/aretw0/strata/pkg/domain"
)

// Filter keeps the nodes matching every criterion of cfg.
// Dropped nodes take their edges with them and release their children.
// Layers no longer referenced are dropped.
func Filter(id string, g *domain.Graph, cfg *domain.FilterConfig) *domain.Graph {
	out := g.Clone()
	out.ID = id
	out.LastEditSequence = 0
	out.HasPendingEdits = false

	layerOK := func(layer string) bool {
		if len(cfg.IncludeLayers) > 0 && !slices.Contains(cfg.IncludeLayers, layer) {
			return false
		}
		return !slices.Contains(cfg.ExcludeLayers, layer)
	}

	var drop []string
	for _, n := range out.Nodes {
		keep := layerOK(n.Layer) && !slices.Contains(cfg.ExcludeNodes, n.ID)
		for k, v := range cfg.AttributeEquals {
			if n.Attributes[k] != v {
				keep = false
				break
			}
		}
		if !keep {
			drop = append(drop, n.ID)
		}
	}
	for _, nodeID := range drop {
		out.RemoveNode(nodeID)
	}

	out.Edges = slices.DeleteFunc(out.Edges, func(e domain.GraphEdge) bool {
		if cfg.MinWeight != nil && e.Weight < *cfg.MinWeight {
			return true
		}
		return e.Layer != "" && !layerOK(e.Layer)
	})

	pruneLayers(out)
	out.Normalize()
	return out
}

// pruneLayers drops layers that no node or edge references.
func pruneLayers(g *domain.Graph) {
	used := make(map[string]bool, len(g.Layers))
	for _, n := range g.Nodes {
		used[n.Layer] = true
	}
	for _, e := range g.Edges {
		used[e.Layer] = true
	}
	g.Layers = slices.DeleteFunc(g.Layers, func(l domain.GraphLayer) bool { return !used[l.ID] })
}
