package processor

import (
	"fmt"
	"maps"

	"github.com/aretw0/strata/pkg/domain"
)

// BuildGraph assembles datasets, in declared order, into one graph.
// Within the build the last dataset to define an ID wins. Layers referenced
// by a node or edge but never defined are added with their ID only.
func BuildGraph(id string, datasets []*domain.Dataset) (*domain.Graph, error) {
	b := newAssembler(id)
	for _, ds := range datasets {
		for _, n := range ds.Nodes {
			b.putNode(n, true)
		}
		for _, e := range ds.Edges {
			b.putEdge(e, true)
		}
		for _, l := range ds.Layers {
			b.putLayer(l, true)
		}
	}

	g := b.graph()
	if err := g.CheckEdges(); err != nil {
		return nil, fmt.Errorf("build %s: %w", id, err)
	}
	if err := g.CheckPartitions(); err != nil {
		return nil, fmt.Errorf("build %s: %w", id, err)
	}
	return g, nil
}

// assembler accumulates graph elements by ID, preserving first-seen order.
type assembler struct {
	g       *domain.Graph
	nodeIdx map[string]int
	edgeIdx map[string]int
	layIdx  map[string]int
}

func newAssembler(id string) *assembler {
	return &assembler{
		g:       domain.NewGraph(id),
		nodeIdx: map[string]int{},
		edgeIdx: map[string]int{},
		layIdx:  map[string]int{},
	}
}

// putNode inserts n. With replace, an existing node is overwritten;
// otherwise the two are merged field by field, n taking precedence.
func (a *assembler) putNode(n domain.GraphNode, replace bool) {
	n.Attributes = maps.Clone(n.Attributes)
	i, ok := a.nodeIdx[n.ID]
	if !ok {
		a.nodeIdx[n.ID] = len(a.g.Nodes)
		a.g.Nodes = append(a.g.Nodes, n)
		return
	}
	if replace {
		a.g.Nodes[i] = n
		return
	}
	cur := &a.g.Nodes[i]
	override(&cur.Label, n.Label)
	override(&cur.Layer, n.Layer)
	override(&cur.BelongsTo, n.BelongsTo)
	if n.Weight != 0 {
		cur.Weight = n.Weight
	}
	cur.Attributes = mergeAttrs(cur.Attributes, n.Attributes)
}

func (a *assembler) putEdge(e domain.GraphEdge, replace bool) {
	e.Attributes = maps.Clone(e.Attributes)
	i, ok := a.edgeIdx[e.ID]
	if !ok {
		a.edgeIdx[e.ID] = len(a.g.Edges)
		a.g.Edges = append(a.g.Edges, e)
		return
	}
	if replace {
		a.g.Edges[i] = e
		return
	}
	cur := &a.g.Edges[i]
	override(&cur.Source, e.Source)
	override(&cur.Target, e.Target)
	override(&cur.Label, e.Label)
	override(&cur.Layer, e.Layer)
	if e.Weight != 0 {
		cur.Weight = e.Weight
	}
	cur.Attributes = mergeAttrs(cur.Attributes, e.Attributes)
}

func (a *assembler) putLayer(l domain.GraphLayer, replace bool) {
	l.Attributes = maps.Clone(l.Attributes)
	i, ok := a.layIdx[l.ID]
	if !ok {
		a.layIdx[l.ID] = len(a.g.Layers)
		a.g.Layers = append(a.g.Layers, l)
		return
	}
	if replace {
		a.g.Layers[i] = l
		return
	}
	cur := &a.g.Layers[i]
	override(&cur.Label, l.Label)
	override(&cur.Color, l.Color)
	cur.Attributes = mergeAttrs(cur.Attributes, l.Attributes)
}

// graph finalizes the assembly: implicit layers are added and everything
// is sorted by ID.
func (a *assembler) graph() *domain.Graph {
	for _, n := range a.g.Nodes {
		a.ensureLayer(n.Layer)
	}
	for _, e := range a.g.Edges {
		a.ensureLayer(e.Layer)
	}
	a.g.Normalize()
	return a.g
}

func (a *assembler) ensureLayer(id string) {
	if id == "" {
		return
	}
	if _, ok := a.layIdx[id]; !ok {
		a.layIdx[id] = len(a.g.Layers)
		a.g.Layers = append(a.g.Layers, domain.GraphLayer{ID: id})
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeAttrs(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	maps.Copy(dst, src)
	return dst
}
