package badger_test

import (
	"context"
	"testing"

	"github.com/aretw0/strata/pkg/adapters/badger"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_Contract(t *testing.T) {
	store, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()

	ports.RunStoreContract(t, store)
}

func TestBadgerStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := badger.DefaultConfig(dir)
	cfg.GCInterval = 0

	// 1. Write a journal and close
	store, err := badger.Open(cfg)
	require.NoError(t, err)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, store.AppendEdit(ctx, domain.GraphEdit{
			GraphID:        "p/g",
			TargetType:     domain.TargetNode,
			TargetID:       "a",
			Operation:      domain.OpDelete,
			SequenceNumber: seq,
		}))
	}
	require.NoError(t, store.Close())

	// 2. Reopen and resume from the persisted sequence
	store, err = badger.Open(cfg)
	require.NoError(t, err)
	defer store.Close()

	last, err := store.LastSequence(ctx, "p/g")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestBadgerStore_JournalIsolation(t *testing.T) {
	store, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// "p/g" must not see entries of "p/g2" even though one ID prefixes the other.
	require.NoError(t, store.AppendEdit(ctx, domain.GraphEdit{GraphID: "p/g", SequenceNumber: 1}))
	require.NoError(t, store.AppendEdit(ctx, domain.GraphEdit{GraphID: "p/g2", SequenceNumber: 7}))

	last, err := store.LastSequence(ctx, "p/g")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)

	edits, err := store.ListEdits(ctx, "p/g", 0)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}
