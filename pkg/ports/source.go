package ports

import (
	"context"
	"iter"

	"github.com/aretw0/strata/pkg/domain"
)

// RowSource provides the records of named datasources.
type RowSource interface {
	// Batches streams the rows of a datasource. Every call starts from the
	// first row, so a sequence can be consumed again for a re-run.
	// An unknown datasource yields a single error wrapping domain.ErrDatasourceNotFound.
	Batches(ctx context.Context, datasource string) iter.Seq2[domain.RowBatch, error]
}

// Broadcaster pushes project changes to subscribed sessions.
// Implementations must not block the caller on slow subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, delta domain.ProjectDelta)
}

// NopBroadcaster discards every delta.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, domain.ProjectDelta) {}
