package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
)

var _ ports.RowSource = (*Source)(nil)

// Source implements ports.RowSource over a directory of CSV files.
// The datasource "people" is read from "<dir>/people.csv"; the header row
// is the schema.
type Source struct {
	dir       string
	batchSize int
}

type Option func(*Source)

// WithBatchSize sets how many rows each batch carries.
func WithBatchSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New creates a Source reading from dir.
func New(dir string, opts ...Option) *Source {
	s := &Source{dir: dir, batchSize: 1000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file backing a datasource.
func (s *Source) Path(datasource string) string {
	return filepath.Join(s.dir, datasource+".csv")
}

// Batches streams the file in batches. The file is reopened on every call.
func (s *Source) Batches(ctx context.Context, datasource string) iter.Seq2[domain.RowBatch, error] {
	return func(yield func(domain.RowBatch, error) bool) {
		if strings.ContainsAny(datasource, `/\`) {
			yield(domain.RowBatch{}, fmt.Errorf("%w: invalid name %q", domain.ErrDatasourceNotFound, datasource))
			return
		}

		f, err := os.Open(s.Path(datasource))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				err = fmt.Errorf("%w: %s", domain.ErrDatasourceNotFound, datasource)
			}
			yield(domain.RowBatch{}, err)
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1 // short rows are reported by the importer, not here
		r.TrimLeadingSpace = true

		header, err := r.Read()
		if err == io.EOF {
			return
		}
		if err != nil {
			yield(domain.RowBatch{}, fmt.Errorf("failed to read header of %s: %w", datasource, err))
			return
		}
		columns := make([]string, len(header))
		for i, h := range header {
			columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}

		batch := domain.RowBatch{Columns: columns}
		offset := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(domain.RowBatch{}, err)
				return
			}

			record, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				yield(domain.RowBatch{}, fmt.Errorf("failed to read %s: %w", datasource, err))
				return
			}

			row := make(domain.Row, len(record))
			for i, v := range record {
				if i < len(columns) {
					row[columns[i]] = v
				}
			}
			batch.Rows = append(batch.Rows, row)

			if len(batch.Rows) == s.batchSize {
				batch.Offset = offset
				offset += len(batch.Rows)
				if !yield(batch, nil) {
					return
				}
				batch = domain.RowBatch{Columns: columns}
			}
		}

		if len(batch.Rows) > 0 {
			batch.Offset = offset
			yield(batch, nil)
		}
	}
}
