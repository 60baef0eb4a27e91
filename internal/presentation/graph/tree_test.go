package graph_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateTree(t *testing.T) {
	got := graph.GenerateTree(sampleGraph())
	assert.Equal(t, strings.Join([]string{
		`- ACME "Corp" (acme)`,
		"  - Team A (team-a)",
		"    - alice",
		"- Team B (team-b)",
		"",
	}, "\n"), got)
}

func TestGenerateMindmap(t *testing.T) {
	got := graph.GenerateMindmap(sampleGraph())
	assert.Equal(t, strings.Join([]string{
		"mindmap",
		"  root((plan/org))",
		`    acme[ACME "Corp"]`,
		"      team_a[Team A]",
		"        alice[alice]",
		"    team_b[Team B]",
		"",
	}, "\n"), got)
}

func TestGenerateTree_DeepHierarchy(t *testing.T) {
	g := domain.NewGraph("deep")
	const depth = 10000
	for i := range depth {
		n := domain.GraphNode{ID: fmt.Sprintf("n%05d", i)}
		if i > 0 {
			n.BelongsTo = fmt.Sprintf("n%05d", i-1)
		}
		g.Nodes = append(g.Nodes, n)
	}

	got := graph.GenerateTree(g)
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	assert.Len(t, lines, depth)
	assert.Equal(t, strings.Repeat("  ", depth-1)+"- n09999", lines[depth-1])
}
