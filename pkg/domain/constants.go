package domain

// NodeKind identifies the processing step a PlanNode performs.
// The set is closed: every kind has exactly one NodeConfig type and one processor.
type NodeKind string

const (
	KindDataSet          NodeKind = "DataSet"
	KindGraph            NodeKind = "Graph"
	KindTransform        NodeKind = "Transform"
	KindFilter           NodeKind = "Filter"
	KindMerge            NodeKind = "Merge"
	KindGraphArtifact    NodeKind = "GraphArtifact"
	KindTreeArtifact     NodeKind = "TreeArtifact"
	KindProjection       NodeKind = "Projection"
	KindStory            NodeKind = "Story"
	KindSequenceArtifact NodeKind = "SequenceArtifact"
)

// NodeKinds lists every known kind in a stable order.
var NodeKinds = []NodeKind{
	KindDataSet,
	KindGraph,
	KindTransform,
	KindFilter,
	KindMerge,
	KindGraphArtifact,
	KindTreeArtifact,
	KindProjection,
	KindStory,
	KindSequenceArtifact,
}

// DataKind is the type of value flowing along a plan edge.
type DataKind string

const (
	DataNone     DataKind = ""
	DataDataset  DataKind = "dataset"
	DataGraph    DataKind = "graph"
	DataStory    DataKind = "story"
	DataArtifact DataKind = "artifact"
)

// Unbounded marks an input spec without an upper arity limit.
const Unbounded = -1

// InputSpec describes what a kind accepts on its input slot.
type InputSpec struct {
	Accepts DataKind
	Min     int
	Max     int
}

// Valid reports whether the kind is one of the known kinds.
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Output returns the data kind a node of this kind produces.
func (k NodeKind) Output() DataKind {
	switch k {
	case KindDataSet:
		return DataDataset
	case KindGraph, KindMerge, KindTransform, KindFilter, KindProjection:
		return DataGraph
	case KindStory:
		return DataStory
	case KindGraphArtifact, KindTreeArtifact, KindSequenceArtifact:
		return DataArtifact
	}
	return DataNone
}

// Input returns the input requirements of this kind.
func (k NodeKind) Input() InputSpec {
	switch k {
	case KindDataSet:
		return InputSpec{Accepts: DataNone, Min: 0, Max: 0}
	case KindGraph:
		return InputSpec{Accepts: DataDataset, Min: 1, Max: Unbounded}
	case KindMerge:
		return InputSpec{Accepts: DataGraph, Min: 2, Max: Unbounded}
	case KindTransform, KindFilter, KindProjection, KindStory, KindGraphArtifact, KindTreeArtifact:
		return InputSpec{Accepts: DataGraph, Min: 1, Max: 1}
	case KindSequenceArtifact:
		return InputSpec{Accepts: DataStory, Min: 1, Max: 1}
	}
	return InputSpec{}
}

// ProducesGraph reports whether nodes of this kind output a Graph.
func (k NodeKind) ProducesGraph() bool {
	return k.Output() == DataGraph
}
