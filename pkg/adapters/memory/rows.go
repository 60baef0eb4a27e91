package memory

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

var _ ports.RowSource = (*RowSource)(nil)

const defaultBatchSize = 500

type table struct {
	columns []string
	rows    []domain.Row
}

// RowSource implements ports.RowSource over in-memory tables.
// Useful for tests and for embedding small datasets.
type RowSource struct {
	mu        sync.RWMutex
	tables    map[string]table
	batchSize int
}

// RowSourceOption configures the RowSource.
type RowSourceOption func(*RowSource)

// WithBatchSize sets how many rows each batch carries.
func WithBatchSize(n int) RowSourceOption {
	return func(s *RowSource) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewRowSource creates a RowSource from tables of rows.
// The schema of each table is the sorted union of its row keys.
func NewRowSource(tables map[string][]domain.Row, opts ...RowSourceOption) *RowSource {
	s := &RowSource{
		tables:    make(map[string]table),
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	for name, rows := range tables {
		s.Set(name, nil, rows...)
	}
	return s
}

// Set replaces a table. When columns is nil the schema is derived from the rows.
func (s *RowSource) Set(name string, columns []string, rows ...domain.Row) {
	if columns == nil {
		seen := make(map[string]struct{})
		for _, r := range rows {
			for k := range r {
				seen[k] = struct{}{}
			}
		}
		columns = slices.Sorted(maps.Keys(seen))
	}

	copied := make([]domain.Row, len(rows))
	for i, r := range rows {
		copied[i] = maps.Clone(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = table{columns: slices.Clone(columns), rows: copied}
}

// Batches streams the rows of a table in chunks of the configured batch size.
func (s *RowSource) Batches(ctx context.Context, datasource string) iter.Seq2[domain.RowBatch, error] {
	return func(yield func(domain.RowBatch, error) bool) {
		s.mu.RLock()
		t, ok := s.tables[datasource]
		s.mu.RUnlock()

		if !ok {
			yield(domain.RowBatch{}, fmt.Errorf("%w: %s", domain.ErrDatasourceNotFound, datasource))
			return
		}

		for offset := 0; offset < len(t.rows); offset += s.batchSize {
			if err := ctx.Err(); err != nil {
				yield(domain.RowBatch{}, err)
				return
			}
			end := min(offset+s.batchSize, len(t.rows))
			batch := domain.RowBatch{
				Columns: t.columns,
				Offset:  offset,
				Rows:    t.rows[offset:end],
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}
