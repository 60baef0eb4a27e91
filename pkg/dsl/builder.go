package dsl

import (
	"fmt"

	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
)

// Builder manages the plan DAG construction.
type Builder struct {
	order []string
	nodes map[string]*NodeBuilder
	edges []domain.PlanEdge
}

// New creates a new plan builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a node of the given kind.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string, kind domain.NodeKind) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.PlanNode{
			ID:     id,
			Kind:   kind,
			Config: map[string]any{},
		},
		builder: b,
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// DataSet adds a node importing a datasource.
func (b *Builder) DataSet(id string) *NodeBuilder {
	return b.Add(id, domain.KindDataSet)
}

func (b *Builder) Graph(id string) *NodeBuilder {
	return b.Add(id, domain.KindGraph)
}

func (b *Builder) Merge(id string) *NodeBuilder {
	return b.Add(id, domain.KindMerge)
}

func (b *Builder) Transform(id string) *NodeBuilder {
	return b.Add(id, domain.KindTransform)
}

func (b *Builder) Filter(id string) *NodeBuilder {
	return b.Add(id, domain.KindFilter)
}

func (b *Builder) Projection(id string) *NodeBuilder {
	return b.Add(id, domain.KindProjection)
}

func (b *Builder) Story(id string) *NodeBuilder {
	return b.Add(id, domain.KindStory)
}

func (b *Builder) GraphArtifact(id string) *NodeBuilder {
	return b.Add(id, domain.KindGraphArtifact)
}

func (b *Builder) TreeArtifact(id string) *NodeBuilder {
	return b.Add(id, domain.KindTreeArtifact)
}

func (b *Builder) SequenceArtifact(id string) *NodeBuilder {
	return b.Add(id, domain.KindSequenceArtifact)
}

// Connect adds an edge from source to target.
func (b *Builder) Connect(source, target string) *Builder {
	b.edges = append(b.edges, domain.PlanEdge{
		ID:     domain.EdgeID(source, target),
		Source: source,
		Target: target,
	})
	return b
}

// Dag returns the DAG as declared, without validation.
func (b *Builder) Dag() domain.PlanDag {
	dag := domain.PlanDag{
		Nodes: make([]domain.PlanNode, 0, len(b.order)),
		Edges: append([]domain.PlanEdge{}, b.edges...),
	}
	for _, id := range b.order {
		dag.Nodes = append(dag.Nodes, b.nodes[id].Build())
	}
	return dag.Clone()
}

// Build returns the validated plan DAG.
func (b *Builder) Build() (domain.PlanDag, error) {
	dag := b.Dag()
	if err := validator.Validate(dag); err != nil {
		return domain.PlanDag{}, fmt.Errorf("failed to build plan: %w", err)
	}
	return dag, nil
}

// MustBuild is like Build but panics on an invalid DAG.
func (b *Builder) MustBuild() domain.PlanDag {
	dag, err := b.Build()
	if err != nil {
		panic(err)
	}
	return dag
}
