package compiler_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/internal/compiler"
	"github.com/aretw0/strata/internal/validator"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const peoplePlan = `
project: demo
name: People
nodes:
  - id: people
    kind: DataSet
    config:
      source: people
  - id: links
    kind: DataSet
    config:
      source: links
  - id: g
    kind: Graph
    from: [people, links]
    position: {x: 120, y: 40}
  - id: chart
    kind: GraphArtifact
    config:
      format: mermaid
edges:
  - source: g
    target: chart
  - source: people
    target: g
`

func TestParse(t *testing.T) {
	plan, err := compiler.NewParser().Parse([]byte(peoplePlan))
	require.NoError(t, err)

	assert.Equal(t, "demo", plan.ProjectID)
	assert.Equal(t, "People", plan.Name)
	assert.Equal(t, domain.PlanDraft, plan.Status)
	require.Len(t, plan.Dag.Nodes, 4)
	assert.Equal(t, domain.KindDataSet, plan.Dag.Nodes[0].Kind)
	assert.Equal(t, "people", plan.Dag.Nodes[0].Config["source"])
	assert.Equal(t, domain.Position{X: 120, Y: 40}, plan.Dag.Nodes[2].Position)

	// from-derived edges first, the duplicate explicit edge is dropped
	assert.Equal(t, []domain.PlanEdge{
		{Source: "people", Target: "g"},
		{Source: "links", Target: "g"},
		{Source: "g", Target: "chart"},
	}, plan.Dag.Edges)

	assert.NoError(t, validator.Validate(plan.Dag))
}

func TestParseFile_DefaultsID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.yaml")
	require.NoError(t, os.WriteFile(path, []byte(peoplePlan), 0o644))

	plan, err := compiler.NewParser().ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "people", plan.ID)
}

func TestParse_JSON(t *testing.T) {
	plan, err := compiler.NewParser().Parse([]byte(`{"id": "p", "nodes": [{"id": "a", "kind": "DataSet", "to": ["b"]}, {"id": "b", "kind": "Graph"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "p", plan.ID)
	assert.Equal(t, []domain.PlanEdge{{Source: "a", Target: "b"}}, plan.Dag.Edges)
}

func TestParse_Errors(t *testing.T) {
	p := compiler.NewParser()

	_, err := p.Parse([]byte(""))
	assert.Error(t, err)

	_, err = p.Parse([]byte("nodes:\n  - kind: Graph\n"))
	assert.ErrorContains(t, err, "missing id")

	_, err = p.Parse([]byte("nodez: []\n"))
	assert.Error(t, err)

	_, err = p.ParseFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
