package counter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate/capgate/internal/counter"
)

func TestMemoryStoreIncrementCreatesWindow(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	ctx := context.Background()

	count, windowStart, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.False(t, windowStart.IsZero())

	count, second, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, windowStart, second, "window start must be stable within the window")
}

func TestMemoryStoreWindowResetsAfterExpiry(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := store.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	now = now.Add(time.Minute)

	count, windowStart, err := store.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "expired window must restart from zero")
	assert.Equal(t, now, windowStart)
}

func TestMemoryStoreGetExpiredReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", 7, time.Minute))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(7), value)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, counter.ErrNotFound)
}

func TestMemoryStoreClosedOperationsFail(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	require.NoError(t, store.Close())

	_, _, err := store.Increment(context.Background(), "k", time.Minute)
	assert.ErrorIs(t, err, counter.ErrClosed)
	_, err = store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, counter.ErrClosed)
}

func TestMemoryStoreIncrementIsAtomicUnderConcurrency(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, _, err := store.Increment(ctx, "shared", time.Hour)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	value, err := store.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine), value)
}

func TestMemoryStoreDistinctKeysAreIndependent(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)

	_, err = store.Get(ctx, "b")
	assert.ErrorIs(t, err, counter.ErrNotFound)
}

func TestMemoryStoreEntryCountTracksLiveEntries(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	ctx := context.Background()

	assert.Equal(t, 0, store.EntryCount())

	_, _, err := store.Increment(ctx, "a", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "b", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, store.EntryCount())
}
