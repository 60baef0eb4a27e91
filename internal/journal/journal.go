package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/strata/internal/metrics"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/google/uuid"
)

// Journal is the append-only edit log of one graph.
//
// A Journal owns the sequence counter of its graph. It must be used by a
// single goroutine, normally the project actor that opened it.
type Journal struct {
	store   ports.JournalStore
	graphID string
	seq     uint64
	now     func() time.Time
	metrics *metrics.Metrics
}

type Option func(*Journal)

func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Journal) { j.metrics = m }
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// Open loads the last persisted sequence of graphID and returns a Journal
// that continues from it.
func Open(ctx context.Context, store ports.JournalStore, graphID string, opts ...Option) (*Journal, error) {
	last, err := store.LastSequence(ctx, graphID)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", graphID, err)
	}

	j := &Journal{
		store:   store,
		graphID: graphID,
		seq:     last,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.metrics == nil {
		j.metrics = metrics.NewNop()
	}
	return j, nil
}

// GraphID returns the graph this journal belongs to.
func (j *Journal) GraphID() string { return j.graphID }

// LastSequence returns the sequence of the last appended edit, or 0.
func (j *Journal) LastSequence() uint64 { return j.seq }

// Append assigns the next sequence number, an ID and a timestamp to the
// edit and persists it. edit.Applied is stored as given: callers set it when
// the edit already reached the live graph. The counter only advances once
// the store accepted the edit, so a failed append leaves no gap.
func (j *Journal) Append(ctx context.Context, edit domain.GraphEdit) (domain.GraphEdit, error) {
	if err := Check(edit); err != nil {
		return domain.GraphEdit{}, err
	}

	edit.GraphID = j.graphID
	edit.SequenceNumber = j.seq + 1
	if edit.ID == "" {
		edit.ID = uuid.NewString()
	}
	edit.CreatedAt = j.now().UTC()

	if err := j.store.AppendEdit(ctx, edit); err != nil {
		return domain.GraphEdit{}, fmt.Errorf("failed to append edit to %s: %w", j.graphID, err)
	}
	j.seq = edit.SequenceNumber
	j.metrics.JournalAppends.Inc()
	return edit, nil
}

// Since returns the persisted edits with a sequence >= fromSeq, in order.
func (j *Journal) Since(ctx context.Context, fromSeq uint64) ([]domain.GraphEdit, error) {
	edits, err := j.store.ListEdits(ctx, j.graphID, fromSeq)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal %s: %w", j.graphID, err)
	}
	return edits, nil
}

// Check reports structurally invalid edits with domain.ErrInvalidEdit.
func Check(edit domain.GraphEdit) error {
	switch edit.TargetType {
	case domain.TargetNode, domain.TargetEdge, domain.TargetLayer:
	default:
		return fmt.Errorf("%w: unknown target type %q", domain.ErrInvalidEdit, edit.TargetType)
	}
	if edit.TargetID == "" {
		return fmt.Errorf("%w: empty target id", domain.ErrInvalidEdit)
	}
	switch edit.Operation {
	case domain.OpCreate, domain.OpDelete:
	case domain.OpUpdate:
		if edit.FieldName == "" || edit.FieldName == "id" {
			return fmt.Errorf("%w: update needs a field other than id", domain.ErrInvalidEdit)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", domain.ErrInvalidEdit, edit.Operation)
	}
	return nil
}
