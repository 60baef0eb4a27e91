package domain

// StoryStep is one resolved edge of a story sequence.
type StoryStep struct {
	EdgeID string `json:"edge_id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// StorySequence is a named, ordered walk through a graph.
type StorySequence struct {
	Name  string      `json:"name"`
	Steps []StoryStep `json:"steps"`
}

// Story is the output of a Story node: sequences resolved against a graph.
type Story struct {
	Name         string          `json:"name,omitempty"`
	GraphID      string          `json:"graph_id"`
	Participants []GraphNode     `json:"participants"`
	Sequences    []StorySequence `json:"sequences"`
}

// Artifact is a rendered, terminal output.
type Artifact struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	MediaType string `json:"media_type"`
	Content   string `json:"content"`
}

// Extension returns the conventional file extension of the artifact format.
func (a *Artifact) Extension() string {
	switch a.Format {
	case "mermaid":
		return ".mmd"
	case "dot":
		return ".dot"
	case "json":
		return ".json"
	}
	return ".txt"
}

// Output is the value a node produced. Exactly one field matching Kind is set.
type Output struct {
	Kind     DataKind  `json:"kind"`
	Dataset  *Dataset  `json:"dataset,omitempty"`
	Graph    *Graph    `json:"graph,omitempty"`
	Story    *Story    `json:"story,omitempty"`
	Artifact *Artifact `json:"artifact,omitempty"`
}

// DatasetOutput wraps a dataset as a node output.
func DatasetOutput(d *Dataset) Output { return Output{Kind: DataDataset, Dataset: d} }

// GraphOutput wraps a graph as a node output.
func GraphOutput(g *Graph) Output { return Output{Kind: DataGraph, Graph: g} }

// StoryOutput wraps a story as a node output.
func StoryOutput(s *Story) Output { return Output{Kind: DataStory, Story: s} }

// ArtifactOutput wraps an artifact as a node output.
func ArtifactOutput(a *Artifact) Output { return Output{Kind: DataArtifact, Artifact: a} }
