package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

func TestPruneRemovesOldLowImportanceEntries(t *testing.T) {
	store, backend, clock := newTestStore(t)
	ctx := context.Background()

	old, err := store.Save(ctx, "user-1", "stale fact", memory.WithImportance(0.3))
	require.NoError(t, err)

	clock.Advance(40 * 24 * time.Hour)
	fresh, err := store.Save(ctx, "user-1", "recent fact", memory.WithImportance(0.3))
	require.NoError(t, err)

	cutoff := clock.Now().Add(-30 * 24 * time.Hour)
	report, err := store.Prune(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, []string{old.ID}, report.Removed)
	assert.Empty(t, report.Failed)

	_, err = store.Get(ctx, old.ID)
	assert.ErrorIs(t, err, memory.ErrNotFound)
	assert.Nil(t, backend.get(old.ID), "prune must remove the durable copy")

	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestPruneNeverRemovesImportantEntries(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	protected, err := store.Save(ctx, "user-1", "crucial fact", memory.WithImportance(0.9))
	require.NoError(t, err)
	boundary, err := store.Save(ctx, "user-1", "floor fact", memory.WithImportance(0.7))
	require.NoError(t, err)

	clock.Advance(365 * 24 * time.Hour)
	report, err := store.Prune(ctx, clock.Now(), true)
	require.NoError(t, err)
	assert.Empty(t, report.Removed,
		"entries at or above the importance floor survive regardless of age")

	_, err = store.Get(ctx, protected.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, boundary.ID)
	assert.NoError(t, err)
}

func TestPruneWithoutImportanceGuard(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	important, err := store.Save(ctx, "user-1", "crucial fact", memory.WithImportance(1.0))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	report, err := store.Prune(ctx, clock.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{important.ID}, report.Removed)
}

func TestPrunePartialFailure(t *testing.T) {
	store, backend, clock := newTestStore(t)
	ctx := context.Background()

	stuck, err := store.Save(ctx, "user-1", "stuck fact", memory.WithImportance(0.1))
	require.NoError(t, err)
	doomed, err := store.Save(ctx, "user-1", "doomed fact", memory.WithImportance(0.1))
	require.NoError(t, err)

	backend.failDeleteIDs[stuck.ID] = true
	clock.Advance(time.Hour)

	report, err := store.Prune(ctx, clock.Now(), true)
	require.NoError(t, err, "per-id failures never abort the batch")
	assert.Equal(t, []string{doomed.ID}, report.Removed)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, stuck.ID, report.Failed[0].ID)

	var perr *memory.PersistenceError
	assert.ErrorAs(t, report.Failed[0].Err, &perr)

	// The failed entry is untouched; the removed one stays removed.
	_, err = store.Get(ctx, stuck.ID)
	assert.NoError(t, err)
	_, err = store.Get(ctx, doomed.ID)
	assert.ErrorIs(t, err, memory.ErrNotFound)
}

func TestPruneSweepsDurableEntriesAfterRestart(t *testing.T) {
	store, backend, clock := newTestStore(t)
	ctx := context.Background()

	stale, err := store.Save(ctx, "user-1", "stale fact", memory.WithImportance(0.1))
	require.NoError(t, err)
	protected, err := store.Save(ctx, "user-1", "crucial fact", memory.WithImportance(0.9))
	require.NoError(t, err)

	clock.Advance(40 * 24 * time.Hour)

	// A fresh store over the same backend simulates a restart: no owner is
	// loaded yet, so eligible entries only exist in durable storage.
	restarted := memory.New(backend, &wordEmbedder{dims: 3},
		memory.WithConfig(&memory.Config{EmbeddingDimensions: 3, CacheCapacity: 8}),
		memory.WithClock(clock.Now))
	defer restarted.Close()

	report, err := restarted.Prune(ctx, clock.Now().Add(-30*24*time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, []string{stale.ID}, report.Removed)
	assert.Nil(t, backend.get(stale.ID), "the durable copy must be removed")
	assert.NotNil(t, backend.get(protected.ID))
}

func TestPruneZeroImportanceFloorProtectsAllEntries(t *testing.T) {
	store, _, clock := newTestStore(t, memory.WithConfig(&memory.Config{
		EmbeddingDimensions: 3,
		CacheCapacity:       8,
		ImportanceFloor:     memory.Float64(0),
	}))
	ctx := context.Background()

	_, err := store.Save(ctx, "user-1", "stale fact", memory.WithImportance(0))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	report, err := store.Prune(ctx, clock.Now(), true)
	require.NoError(t, err)
	assert.Empty(t, report.Removed, "every score sits at or above a zero floor")
}

func TestPruneHonorsCancellation(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "user-1", "stale fact", memory.WithImportance(0.1))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Prune(cancelled, clock.Now(), true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrunePolicyEligibility(t *testing.T) {
	policy := memory.PrunePolicy{ImportanceFloor: 0.7}
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-time.Hour)

	cases := []struct {
		name          string
		entry         memory.Entry
		keepImportant bool
		want          bool
	}{
		{"old and unimportant", memory.Entry{CreatedAt: old, Importance: 0.2}, true, true},
		{"old but important", memory.Entry{CreatedAt: old, Importance: 0.8}, true, false},
		{"exactly at floor", memory.Entry{CreatedAt: old, Importance: 0.7}, true, false},
		{"old and important, guard off", memory.Entry{CreatedAt: old, Importance: 0.8}, false, true},
		{"too recent", memory.Entry{CreatedAt: cutoff, Importance: 0.2}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.entry
			assert.Equal(t, tc.want, policy.Eligible(&e, cutoff, tc.keepImportant))
		})
	}
}
