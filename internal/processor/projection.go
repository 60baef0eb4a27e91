package processor

import (
	"fmt"
	"maps"
	"strconv"

	"github.com/aretw0/strata/pkg/domain"
)

// Project collapses nodes into groups and re-points edges between groups.
// Edges inside a group disappear; parallel edges are aggregated.
func Project(id string, g *domain.Graph, cfg *domain.ProjectionConfig) (*domain.Graph, error) {
	var (
		group map[string]string
		nodes []domain.GraphNode
		err   error
	)
	switch cfg.Mode {
	case domain.ProjectLayer:
		group, nodes = layerGroups(g)
	case domain.ProjectPartition, "":
		group, nodes, err = partitionGroups(g)
	default:
		err = fmt.Errorf("unknown projection mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	out := domain.NewGraph(id)
	out.Nodes = nodes
	out.Edges = aggregateEdges(g.Edges, func(nodeID string) string {
		if to, ok := group[nodeID]; ok {
			return to
		}
		return nodeID
	})
	for _, l := range g.Layers {
		l.Attributes = maps.Clone(l.Attributes)
		out.Layers = append(out.Layers, l)
	}
	pruneLayers(out)
	out.Normalize()
	return out, nil
}

// partitionGroups maps every node to its partition root.
// Roots are resolved iteratively, each chain walked once.
func partitionGroups(g *domain.Graph) (map[string]string, []domain.GraphNode, error) {
	if err := g.CheckPartitions(); err != nil {
		return nil, nil, err
	}

	parent := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		parent[n.ID] = n.BelongsTo
	}

	root := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		var chain []string
		cur := n.ID
		for {
			if r, ok := root[cur]; ok {
				cur = r
				break
			}
			chain = append(chain, cur)
			if parent[cur] == "" {
				break
			}
			cur = parent[cur]
		}
		for _, c := range chain {
			root[c] = cur
		}
	}

	members := make(map[string]int, len(g.Nodes))
	for _, r := range root {
		members[r]++
	}

	var nodes []domain.GraphNode
	for _, n := range g.Nodes {
		if n.BelongsTo != "" {
			continue
		}
		n.Attributes = mergeAttrs(maps.Clone(n.Attributes), map[string]string{"members": strconv.Itoa(members[n.ID])})
		nodes = append(nodes, n)
	}
	return root, nodes, nil
}

// layerGroups maps every layered node to one node per layer.
// Nodes without a layer stay as they are.
func layerGroups(g *domain.Graph) (map[string]string, []domain.GraphNode) {
	labels := make(map[string]string, len(g.Layers))
	for _, l := range g.Layers {
		labels[l.ID] = l.Label
	}

	group := make(map[string]string, len(g.Nodes))
	members := map[string]int{}
	var order []string
	var nodes []domain.GraphNode

	for _, n := range g.Nodes {
		if n.Layer == "" {
			n.BelongsTo = ""
			n.Attributes = maps.Clone(n.Attributes)
			nodes = append(nodes, n)
			continue
		}
		group[n.ID] = n.Layer
		if members[n.Layer] == 0 {
			order = append(order, n.Layer)
		}
		members[n.Layer]++
	}

	for _, layer := range order {
		nodes = append(nodes, domain.GraphNode{
			ID:         layer,
			Label:      labels[layer],
			Layer:      layer,
			Attributes: map[string]string{"members": strconv.Itoa(members[layer])},
		})
	}
	return group, nodes
}
