package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRowSource_Contract(t *testing.T) {
	data := map[string][]domain.Row{
		"people": {
			{"id": "a", "label": "A"},
			{"id": "b", "label": "B"},
			{"id": "c", "label": "C"},
		},
		"links": {
			{"source": "a", "target": "b"},
		},
	}
	source := memory.NewRowSource(data, memory.WithBatchSize(2))
	tests.RowSourceContractTest(t, source, data)
}

func TestMemoryRowSource_Batching(t *testing.T) {
	rows := make([]domain.Row, 5)
	for i := range rows {
		rows[i] = domain.Row{"id": string(rune('a' + i))}
	}
	source := memory.NewRowSource(map[string][]domain.Row{"t": rows}, memory.WithBatchSize(2))

	var sizes []int
	for batch, err := range source.Batches(context.Background(), "t") {
		require.NoError(t, err)
		assert.Equal(t, []string{"id"}, batch.Columns)
		sizes = append(sizes, len(batch.Rows))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestMemoryRowSource_Cancelled(t *testing.T) {
	source := memory.NewRowSource(map[string][]domain.Row{"t": {{"id": "a"}}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	for _, err := range source.Batches(ctx, "t") {
		got = err
	}
	assert.ErrorIs(t, got, context.Canceled)
}
