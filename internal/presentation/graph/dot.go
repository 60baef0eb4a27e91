package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
)

var rankdir = map[string]string{
	"TD": "TB",
	"TB": "TB",
	"BT": "BT",
	"LR": "LR",
	"RL": "RL",
}

// GenerateDOT produces a Graphviz digraph of a computed graph.
// Layer colors fill their member nodes.
func GenerateDOT(g *domain.Graph, direction string) string {
	g = sorted(g)
	dir, ok := rankdir[direction]
	if !ok {
		dir = "TB"
	}

	colors := make(map[string]string, len(g.Layers))
	for _, l := range g.Layers {
		if l.Color != "" {
			colors[l.ID] = l.Color
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", dotQuote(g.ID))
	fmt.Fprintf(&sb, "  rankdir=%s;\n", dir)

	for _, n := range g.Nodes {
		attrs := []string{"label=" + dotQuote(labelOf(n.ID, n.Label))}
		if c, ok := colors[n.Layer]; ok {
			attrs = append(attrs, "style=filled", "fillcolor="+dotQuote(c))
		}
		fmt.Fprintf(&sb, "  %s [%s];\n", dotQuote(n.ID), strings.Join(attrs, ", "))
	}

	for _, e := range g.Edges {
		var attrs []string
		if e.Label != "" {
			attrs = append(attrs, "label="+dotQuote(e.Label))
		}
		if e.Weight != 0 {
			attrs = append(attrs, "weight="+strconv.FormatFloat(e.Weight, 'g', -1, 64))
		}
		if len(attrs) == 0 {
			fmt.Fprintf(&sb, "  %s -> %s;\n", dotQuote(e.Source), dotQuote(e.Target))
			continue
		}
		fmt.Fprintf(&sb, "  %s -> %s [%s];\n", dotQuote(e.Source), dotQuote(e.Target), strings.Join(attrs, ", "))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
