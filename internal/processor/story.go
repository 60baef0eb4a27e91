package processor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// BuildStory resolves each configured sequence of edge IDs against g.
// An unknown edge fails the whole story.
func BuildStory(g *domain.Graph, cfg *domain.StoryConfig) (*domain.Story, error) {
	edges := make(map[string]domain.GraphEdge, len(g.Edges))
	for _, e := range g.Edges {
		edges[e.ID] = e
	}
	nodes := make(map[string]domain.GraphNode, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}

	story := &domain.Story{
		Name:      cfg.Name,
		GraphID:   g.ID,
		Sequences: make([]domain.StorySequence, 0, len(cfg.Sequences)),
	}
	seen := map[string]bool{}

	for _, sc := range cfg.Sequences {
		seq := domain.StorySequence{Name: sc.Name, Steps: make([]domain.StoryStep, 0, len(sc.Edges))}
		for _, edgeID := range sc.Edges {
			e, ok := edges[edgeID]
			if !ok {
				return nil, fmt.Errorf("sequence %s: edge %s: %w", sc.Name, edgeID, domain.ErrTargetNotFound)
			}
			seq.Steps = append(seq.Steps, domain.StoryStep{
				EdgeID: e.ID,
				Source: e.Source,
				Target: e.Target,
				Label:  e.Label,
			})
			for _, id := range []string{e.Source, e.Target} {
				if seen[id] {
					continue
				}
				seen[id] = true
				p, ok := nodes[id]
				if !ok {
					p = domain.GraphNode{ID: id}
				}
				story.Participants = append(story.Participants, p)
			}
		}
		story.Sequences = append(story.Sequences, seq)
	}

	slices.SortFunc(story.Participants, func(a, b domain.GraphNode) int { return strings.Compare(a.ID, b.ID) })
	return story, nil
}
