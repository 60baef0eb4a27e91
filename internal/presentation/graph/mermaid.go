package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

// PlanOverlay contains run state to visualize on a plan DAG.
type PlanOverlay struct {
	Status map[string]domain.ExecutionStatus
}

// GeneratePlanMermaid produces a Mermaid flowchart of a plan DAG.
// It applies semantic styling:
// - DataSet: [(Cylinder)]
// - Graph producers: [Rectangle]
// - Story: [/Parallelogram/]
// - Artifacts: [[Subroutine]]
// It also applies overlay styles (per execution status) if provided.
func GeneratePlanMermaid(dag domain.PlanDag, overlay *PlanOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, node := range dag.Nodes {
		safeID := sanitizeMermaidID(node.ID)

		opener, closer := "[", "]"
		switch node.Kind.Output() {
		case domain.DataDataset:
			opener, closer = "[(", ")]"
		case domain.DataStory:
			opener, closer = "[/", "/]"
		case domain.DataArtifact:
			opener, closer = "[[", "]]"
		}

		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n", safeID, opener, escapeLabel(node.ID), node.Kind, closer)
	}

	for _, e := range dag.Edges {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(e.Source), sanitizeMermaidID(e.Target))
	}

	// Apply Overlay Styles
	if overlay != nil && len(overlay.Status) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme (Light/Dark)
		sb.WriteString("    classDef succeeded fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4,color:#000;\n")
		sb.WriteString("    classDef running fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		for _, node := range dag.Nodes {
			status, ok := overlay.Status[node.ID]
			if !ok || status == domain.StatusPending {
				continue
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(node.ID), status)
		}
	}

	return sb.String()
}

// GenerateMermaid produces a Mermaid flowchart of a computed graph.
// Nodes and edges are sorted by ID; layers with a color become classes.
func GenerateMermaid(g *domain.Graph, direction string) string {
	g = sorted(g)
	if direction == "" {
		direction = "TD"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "graph %s\n", direction)

	for _, n := range g.Nodes {
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", sanitizeMermaidID(n.ID), escapeLabel(labelOf(n.ID, n.Label)))
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if text := edgeText(e); text != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escapeLabel(text))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.Source), arrow, sanitizeMermaidID(e.Target))
	}

	// Layer Styles
	for _, l := range g.Layers {
		var members []string
		for _, n := range g.Nodes {
			if n.Layer == l.ID {
				members = append(members, sanitizeMermaidID(n.ID))
			}
		}
		if len(members) == 0 || l.Color == "" {
			continue
		}
		class := "layer_" + sanitizeMermaidID(l.ID)
		fmt.Fprintf(&sb, "    classDef %s fill:%s,color:#000;\n", class, l.Color)
		fmt.Fprintf(&sb, "    class %s %s;\n", strings.Join(members, ","), class)
	}

	return sb.String()
}

// GenerateSequence produces a Mermaid sequenceDiagram of a story.
// Each sequence is framed in its own rect block.
func GenerateSequence(story *domain.Story, title string) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	if title != "" {
		fmt.Fprintf(&sb, "    title %s\n", sequenceText(title))
	}

	participants := slices.Clone(story.Participants)
	slices.SortFunc(participants, func(a, b domain.GraphNode) int { return strings.Compare(a.ID, b.ID) })
	for _, p := range participants {
		fmt.Fprintf(&sb, "    participant %s as %s\n", sanitizeMermaidID(p.ID), sequenceText(labelOf(p.ID, p.Label)))
	}

	for _, seq := range story.Sequences {
		if len(seq.Steps) == 0 {
			continue
		}
		sb.WriteString("    rect rgb(245, 245, 245)\n")
		fmt.Fprintf(&sb, "    Note over %s: %s\n", sanitizeMermaidID(seq.Steps[0].Source), sequenceText(seq.Name))
		for _, step := range seq.Steps {
			msg := step.Label
			if msg == "" {
				msg = step.EdgeID
			}
			fmt.Fprintf(&sb, "    %s->>%s: %s\n", sanitizeMermaidID(step.Source), sanitizeMermaidID(step.Target), sequenceText(msg))
		}
		sb.WriteString("    end\n")
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ">", "_")
	return s
}

// escapeLabel replaces double quotes, which would end a Mermaid label.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.ReplaceAll(s, "\n", " ")
}

// sequenceText strips characters that break sequenceDiagram lines.
func sequenceText(s string) string {
	r := strings.NewReplacer("\n", " ", ";", ",", "#", "")
	return r.Replace(s)
}

func labelOf(id, label string) string {
	if label != "" {
		return label
	}
	return id
}

func edgeText(e domain.GraphEdge) string {
	if e.Label != "" {
		return e.Label
	}
	if e.Weight != 0 {
		return strconv.FormatFloat(e.Weight, 'g', -1, 64)
	}
	return ""
}

// sorted returns a normalized copy, leaving the input untouched.
func sorted(g *domain.Graph) *domain.Graph {
	c := g.Clone()
	c.Normalize()
	return c
}
