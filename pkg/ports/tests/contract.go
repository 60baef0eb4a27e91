package tests

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RowSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.RowSource.
// setupData maps datasource names to the rows the source is expected to yield.
func RowSourceContractTest(t *testing.T, source ports.RowSource, setupData map[string][]domain.Row) {
	t.Helper()
	ctx := context.Background()

	collect := func(t *testing.T, name string) ([]domain.Row, []string) {
		t.Helper()
		var rows []domain.Row
		var columns []string
		offset := 0
		for batch, err := range source.Batches(ctx, name) {
			require.NoError(t, err)
			assert.Equal(t, offset, batch.Offset, "batches must be contiguous")
			offset += len(batch.Rows)
			rows = append(rows, batch.Rows...)
			columns = batch.Columns
		}
		return rows, columns
	}

	// 1. Every row, in order
	t.Run("Batches_Success", func(t *testing.T) {
		for name, expected := range setupData {
			rows, columns := collect(t, name)
			assert.Equal(t, expected, rows, "rows mismatch for %s", name)
			if len(expected) > 0 {
				for col := range expected[0] {
					assert.Contains(t, columns, col)
				}
			}
		}
	})

	// 2. Sequences restart on every call
	t.Run("Batches_Restartable", func(t *testing.T) {
		for name, expected := range setupData {
			first, _ := collect(t, name)
			second, _ := collect(t, name)
			assert.Equal(t, first, second)
			assert.Len(t, second, len(expected))
		}
	})

	// 3. Early break stops iteration without error
	t.Run("Batches_EarlyBreak", func(t *testing.T) {
		for name := range setupData {
			for _, err := range source.Batches(ctx, name) {
				require.NoError(t, err)
				break
			}
		}
	})

	// 4. Unknown datasource
	t.Run("Batches_NotFound", func(t *testing.T) {
		var got error
		for _, err := range source.Batches(ctx, "non-existent-source") {
			if err != nil {
				got = err
				break
			}
		}
		assert.ErrorIs(t, got, domain.ErrDatasourceNotFound)
	})
}
