package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
	"github.com/capgate/capgate/internal/ratelimit"
)

func TestCheckAllowsUpToLimitThenRejects(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(counter.NewMemoryStore())
	ctx := context.Background()

	const limit = 5
	lastRemaining := limit
	for i := 0; i < limit; i++ {
		res, err := limiter.Check(ctx, "generate:ip:1.2.3.4", limit, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "call %d within limit must be allowed", i+1)
		assert.Less(t, res.Remaining, lastRemaining, "remaining must strictly decrease")
		lastRemaining = res.Remaining
	}
	assert.Equal(t, 0, lastRemaining)

	res, err := limiter.Check(ctx, "generate:ip:1.2.3.4", limit, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
}

func TestCheckDistinctIdentifiersAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(counter.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Check(ctx, "generate:ip:1.1.1.1", 3, time.Minute)
		require.NoError(t, err)
	}

	res, err := limiter.Check(ctx, "generate:ip:2.2.2.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestCheckScopesDoNotLeak(t *testing.T) {
	t.Parallel()

	limiter := ratelimit.New(counter.NewMemoryStore())
	ctx := context.Background()
	caller := identity.IP("9.9.9.9")

	genKey := ratelimit.Key(ratelimit.ScopeGenerate, caller)
	fbKey := ratelimit.Key(ratelimit.ScopeFeedback, caller)
	require.NotEqual(t, genKey, fbKey)

	for i := 0; i < 2; i++ {
		res, err := limiter.Check(ctx, genKey, 2, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := limiter.Check(ctx, genKey, 2, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	// Same caller, different scope: its own window.
	res, err = limiter.Check(ctx, fbKey, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckResetAtIsWindowEnd(t *testing.T) {
	t.Parallel()

	store := counter.NewMemoryStore()
	now := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	limiter := ratelimit.New(store)
	res, err := limiter.Check(context.Background(), "k", 10, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), res.ResetAt)
}

func TestResultHeaders(t *testing.T) {
	t.Parallel()

	resetAt := time.Unix(1_900_000_000, 0)
	res := ratelimit.Result{Allowed: true, Limit: 10, Remaining: 4, ResetAt: resetAt}

	headers := res.Headers()
	assert.Equal(t, "10", headers[ratelimit.HeaderLimit])
	assert.Equal(t, "4", headers[ratelimit.HeaderRemaining])
	assert.Equal(t, "1900000000", headers[ratelimit.HeaderReset])
}
