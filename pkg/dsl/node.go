package dsl

import "github.com/aretw0/strata/pkg/domain"

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.PlanNode
	builder *Builder
}

// From connects each source to this node, in order.
func (n *NodeBuilder) From(sources ...string) *NodeBuilder {
	for _, src := range sources {
		n.builder.Connect(src, n.node.ID)
	}
	return n
}

// To connects this node to each target.
func (n *NodeBuilder) To(targets ...string) *NodeBuilder {
	for _, dst := range targets {
		n.builder.Connect(n.node.ID, dst)
	}
	return n
}

// Set assigns a raw config value.
func (n *NodeBuilder) Set(key string, value any) *NodeBuilder {
	n.node.Config[key] = value
	return n
}

// Source sets the datasource of a DataSet node.
func (n *NodeBuilder) Source(name string) *NodeBuilder {
	return n.Set("source", name)
}

// Op appends a transform operation. args are merged into the operation.
func (n *NodeBuilder) Op(op string, args map[string]any) *NodeBuilder {
	entry := map[string]any{"op": op}
	for k, v := range args {
		entry[k] = v
	}
	ops, _ := n.node.Config["operations"].([]any)
	n.node.Config["operations"] = append(ops, entry)
	return n
}

// Sequence appends a story sequence walking the given edge ids.
func (n *NodeBuilder) Sequence(name string, edges ...string) *NodeBuilder {
	ids := make([]any, len(edges))
	for i, e := range edges {
		ids[i] = e
	}
	seqs, _ := n.node.Config["sequences"].([]any)
	n.node.Config["sequences"] = append(seqs, map[string]any{
		"name":  name,
		"edges": ids,
	})
	return n
}

// At sets the editor position of the node.
func (n *NodeBuilder) At(x, y float64) *NodeBuilder {
	n.node.Position = domain.Position{X: x, Y: y}
	return n
}

// Build returns the underlying domain.PlanNode.
func (n *NodeBuilder) Build() domain.PlanNode {
	return n.node
}
