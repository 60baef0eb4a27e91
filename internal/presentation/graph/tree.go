package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

type treeLine struct {
	node  domain.GraphNode
	depth int
}

// walkTree flattens the partition hierarchy in pre-order, siblings by ID.
// The walk keeps an explicit stack; parents are assumed acyclic.
func walkTree(g *domain.Graph) []treeLine {
	g = sorted(g)

	children := make(map[string][]domain.GraphNode, len(g.Nodes))
	var roots []domain.GraphNode
	for _, n := range g.Nodes {
		if n.BelongsTo == "" {
			roots = append(roots, n)
			continue
		}
		children[n.BelongsTo] = append(children[n.BelongsTo], n)
	}

	lines := make([]treeLine, 0, len(g.Nodes))
	stack := make([]treeLine, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, treeLine{node: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lines = append(lines, top)

		kids := children[top.node.ID]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, treeLine{node: kids[i], depth: top.depth + 1})
		}
	}
	return lines
}

// GenerateTree renders the partition hierarchy as indented text.
func GenerateTree(g *domain.Graph) string {
	var sb strings.Builder
	for _, l := range walkTree(g) {
		sb.WriteString(strings.Repeat("  ", l.depth))
		if l.node.Label != "" && l.node.Label != l.node.ID {
			fmt.Fprintf(&sb, "- %s (%s)\n", l.node.Label, l.node.ID)
			continue
		}
		fmt.Fprintf(&sb, "- %s\n", l.node.ID)
	}
	return sb.String()
}

// GenerateMindmap renders the partition hierarchy as a Mermaid mindmap
// rooted at the graph itself.
func GenerateMindmap(g *domain.Graph) string {
	var sb strings.Builder
	sb.WriteString("mindmap\n")
	fmt.Fprintf(&sb, "  root((%s))\n", mindmapText(g.ID))
	for _, l := range walkTree(g) {
		sb.WriteString(strings.Repeat("  ", l.depth+2))
		fmt.Fprintf(&sb, "%s[%s]\n", sanitizeMermaidID(l.node.ID), mindmapText(labelOf(l.node.ID, l.node.Label)))
	}
	return sb.String()
}

// mindmapText drops the bracket characters that delimit mindmap shapes.
func mindmapText(s string) string {
	r := strings.NewReplacer("(", "", ")", "", "[", "", "]", "", "{", "", "}", "", "\n", " ")
	return r.Replace(s)
}
