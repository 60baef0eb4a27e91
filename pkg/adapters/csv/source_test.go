package csv_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/strata/internal/testutils"
	"github.com/aretw0/strata/pkg/adapters/csv"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	testutils.WriteFile(t, filepath.Join(dir, name), content)
}

func TestCSVSource_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", "id,label\na,A\nb,B\nc,C\n")
	writeFile(t, dir, "links.csv", "source,target,weight\na,b,1.5\n")

	source := csv.New(dir, csv.WithBatchSize(2))
	tests.RowSourceContractTest(t, source, map[string][]domain.Row{
		"people": {
			{"id": "a", "label": "A"},
			{"id": "b", "label": "B"},
			{"id": "c", "label": "C"},
		},
		"links": {
			{"source": "a", "target": "b", "weight": "1.5"},
		},
	})
}

func TestCSVSource_ShortRowsAndBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "people.csv", "\ufeffid, label\na\nb,B\n")

	var rows []domain.Row
	for batch, err := range csv.New(dir).Batches(context.Background(), "people") {
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "label"}, batch.Columns)
		rows = append(rows, batch.Rows...)
	}

	require.Len(t, rows, 2)
	_, hasLabel := rows[0]["label"]
	assert.False(t, hasLabel, "missing trailing fields are absent, not empty")
	assert.Equal(t, "B", rows[1]["label"])
}

func TestCSVSource_RejectsPathTraversal(t *testing.T) {
	var got error
	for _, err := range csv.New(t.TempDir()).Batches(context.Background(), "../etc/passwd") {
		got = err
	}
	assert.ErrorIs(t, got, domain.ErrDatasourceNotFound)
}
