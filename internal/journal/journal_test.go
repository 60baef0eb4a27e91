package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/strata/internal/journal"
	"github.com/aretw0/strata/pkg/adapters/memory"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelEdit(target, label string) domain.GraphEdit {
	return domain.GraphEdit{
		TargetType: domain.TargetNode,
		TargetID:   target,
		Operation:  domain.OpUpdate,
		FieldName:  "label",
		NewValue:   []byte(`"` + label + `"`),
		CreatedBy:  "alice",
	}
}

func TestJournal_AppendAssignsSequence(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	j, err := journal.Open(ctx, store, "p/g", journal.WithClock(func() time.Time { return at }))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), j.LastSequence())

	first, err := j.Append(ctx, labelEdit("a", "A"))
	require.NoError(t, err)
	second, err := j.Append(ctx, labelEdit("b", "B"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.SequenceNumber)
	assert.Equal(t, uint64(2), second.SequenceNumber)
	assert.Equal(t, "p/g", first.GraphID)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, at, first.CreatedAt)

	edits, err := j.Since(ctx, 2)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.Equal(t, "b", edits[0].TargetID)
}

func TestJournal_OpenResumesFromStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	j, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)
	for range 3 {
		_, err := j.Append(ctx, labelEdit("a", "x"))
		require.NoError(t, err)
	}

	reopened, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), reopened.LastSequence())

	e, err := reopened.Append(ctx, labelEdit("a", "y"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.SequenceNumber)
}

// flakyStore fails AppendEdit while broken is set.
type flakyStore struct {
	*memory.Store
	broken bool
}

func (s *flakyStore) AppendEdit(ctx context.Context, edit domain.GraphEdit) error {
	if s.broken {
		return errors.New("connection reset")
	}
	return s.Store.AppendEdit(ctx, edit)
}

func TestJournal_FailedAppendKeepsCounter(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.NewStore()}

	j, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)

	_, err = j.Append(ctx, labelEdit("a", "A"))
	require.NoError(t, err)

	store.broken = true
	_, err = j.Append(ctx, labelEdit("a", "B"))
	require.Error(t, err)
	assert.Equal(t, uint64(1), j.LastSequence())

	store.broken = false
	e, err := j.Append(ctx, labelEdit("a", "C"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), e.SequenceNumber)
}

func TestJournal_RejectsInvalidEdit(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(ctx, memory.NewStore(), "p/g")
	require.NoError(t, err)

	cases := map[string]domain.GraphEdit{
		"no target":       {TargetType: domain.TargetNode, Operation: domain.OpDelete},
		"bad type":        {TargetType: "cluster", TargetID: "a", Operation: domain.OpDelete},
		"bad operation":   {TargetType: domain.TargetNode, TargetID: "a", Operation: "rename"},
		"update no field": {TargetType: domain.TargetNode, TargetID: "a", Operation: domain.OpUpdate},
		"update id":       {TargetType: domain.TargetNode, TargetID: "a", Operation: domain.OpUpdate, FieldName: "id"},
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := j.Append(ctx, edit)
			assert.ErrorIs(t, err, domain.ErrInvalidEdit)
		})
	}
	assert.Equal(t, uint64(0), j.LastSequence())
}

func TestJournal_AppendStoresAppliedFlag(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	j, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)

	live := labelEdit("a", "A")
	live.Applied = true
	_, err = j.Append(ctx, live)
	require.NoError(t, err)
	_, err = j.Append(ctx, labelEdit("b", "B"))
	require.NoError(t, err)

	edits, err := store.ListEdits(ctx, "p/g", 0)
	require.NoError(t, err)
	require.Len(t, edits, 2)
	assert.True(t, edits[0].Applied)
	assert.False(t, edits[1].Applied)
}

func TestJournal_SequenceTakenByAnotherWriter(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	owner, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)
	stale, err := journal.Open(ctx, store, "p/g")
	require.NoError(t, err)

	_, err = owner.Append(ctx, labelEdit("a", "owner"))
	require.NoError(t, err)

	_, err = stale.Append(ctx, labelEdit("a", "stale"))
	require.ErrorIs(t, err, domain.ErrSequenceTaken)
	assert.Equal(t, uint64(0), stale.LastSequence())

	edits, err := store.ListEdits(ctx, "p/g", 0)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	assert.JSONEq(t, `"owner"`, string(edits[0].NewValue))
}
