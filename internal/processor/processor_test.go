package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/strata/internal/processor"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kindCases has one runnable configuration and input set per node kind.
func kindCases(g *domain.Graph) map[domain.NodeKind]struct {
	raw    map[string]any
	inputs []domain.Output
	want   domain.DataKind
} {
	story := &domain.Story{GraphID: g.ID, Sequences: []domain.StorySequence{{Name: "s"}}}
	ds := &domain.Dataset{Nodes: []domain.GraphNode{{ID: "a"}}}

	type kc = struct {
		raw    map[string]any
		inputs []domain.Output
		want   domain.DataKind
	}
	return map[domain.NodeKind]kc{
		domain.KindDataSet:          {map[string]any{"source": "people"}, nil, domain.DataDataset},
		domain.KindGraph:            {nil, []domain.Output{domain.DatasetOutput(ds)}, domain.DataGraph},
		domain.KindMerge:            {nil, []domain.Output{domain.GraphOutput(g), domain.GraphOutput(g)}, domain.DataGraph},
		domain.KindTransform:        {map[string]any{"operations": []any{map[string]any{"op": "invert_edges"}}}, []domain.Output{domain.GraphOutput(g)}, domain.DataGraph},
		domain.KindFilter:           {nil, []domain.Output{domain.GraphOutput(g)}, domain.DataGraph},
		domain.KindProjection:       {nil, []domain.Output{domain.GraphOutput(g)}, domain.DataGraph},
		domain.KindStory:            {map[string]any{"sequences": []any{map[string]any{"name": "s", "edges": []any{"alice->bob"}}}}, []domain.Output{domain.GraphOutput(g)}, domain.DataStory},
		domain.KindGraphArtifact:    {nil, []domain.Output{domain.GraphOutput(g)}, domain.DataArtifact},
		domain.KindTreeArtifact:     {nil, []domain.Output{domain.GraphOutput(g)}, domain.DataArtifact},
		domain.KindSequenceArtifact: {nil, []domain.Output{domain.StoryOutput(story)}, domain.DataArtifact},
	}
}

func TestDispatcher_EveryKind(t *testing.T) {
	rows := memory.NewRowSource(map[string][]domain.Row{"people": {{"id": "a"}}})
	d := processor.New(rows)
	cases := kindCases(layeredGraph())

	for _, kind := range domain.NodeKinds {
		t.Run(string(kind), func(t *testing.T) {
			tc, ok := cases[kind]
			require.True(t, ok, "no case for %s", kind)

			cfg, err := domain.DecodeConfig(kind, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, kind, cfg.Kind())

			out, err := d.Process(context.Background(), processor.Request{
				PlanID: "p", NodeID: "n", Config: cfg, Inputs: tc.inputs,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, out.Kind)
			assert.Equal(t, kind.Output(), out.Kind)

			if out.Kind == domain.DataGraph {
				assert.Equal(t, "p/n", out.Graph.ID)
			}
		})
	}
}

func TestDispatcher_WrongInputKind(t *testing.T) {
	d := processor.New(nil)
	ds := &domain.Dataset{}

	_, err := d.Process(context.Background(), processor.Request{
		NodeID: "f",
		Config: &domain.FilterConfig{},
		Inputs: []domain.Output{domain.DatasetOutput(ds)},
	})
	require.Error(t, err)

	var perr *domain.ProcessorError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "f", perr.NodeID)
	assert.Equal(t, domain.KindFilter, perr.Kind)
}

func TestDispatcher_NoRowSource(t *testing.T) {
	_, err := processor.New(nil).Process(context.Background(), processor.Request{
		NodeID: "d",
		Config: &domain.DataSetConfig{Source: "x"},
	})
	var ierr *domain.ImportError
	assert.True(t, errors.As(err, &ierr))
}
