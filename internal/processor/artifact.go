package processor

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
)

const (
	mediaMermaid = "text/vnd.mermaid"
	mediaDOT     = "text/vnd.graphviz"
	mediaJSON    = "application/json"
	mediaText    = "text/plain"
)

// RenderGraph renders a whole graph as mermaid, dot or JSON.
func RenderGraph(name string, g *domain.Graph, cfg *domain.GraphArtifactConfig) (*domain.Artifact, error) {
	a := &domain.Artifact{Name: name, Format: cfg.Format}
	switch cfg.Format {
	case "mermaid", "":
		a.Format = "mermaid"
		a.MediaType = mediaMermaid
		a.Content = graph.GenerateMermaid(g, cfg.Direction)
	case "dot":
		a.MediaType = mediaDOT
		a.Content = graph.GenerateDOT(g, cfg.Direction)
	case "json":
		c := g.Clone()
		c.Normalize()
		data, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal graph: %w", err)
		}
		a.MediaType = mediaJSON
		a.Content = string(data) + "\n"
	default:
		return nil, fmt.Errorf("unknown graph artifact format %q", cfg.Format)
	}
	return a, nil
}

// RenderTree renders the partition hierarchy of a graph.
func RenderTree(name string, g *domain.Graph, cfg *domain.TreeArtifactConfig) *domain.Artifact {
	if cfg.Format == "mermaid" {
		return &domain.Artifact{Name: name, Format: "mermaid", MediaType: mediaMermaid, Content: graph.GenerateMindmap(g)}
	}
	return &domain.Artifact{Name: name, Format: "text", MediaType: mediaText, Content: graph.GenerateTree(g)}
}

// RenderSequence renders a story as a sequence chart.
func RenderSequence(name string, s *domain.Story, cfg *domain.SequenceArtifactConfig) *domain.Artifact {
	title := cfg.Title
	if title == "" {
		title = s.Name
	}
	return &domain.Artifact{Name: name, Format: "mermaid", MediaType: mediaMermaid, Content: graph.GenerateSequence(s, title)}
}
