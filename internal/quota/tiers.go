package quota

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Tier classifies a caller for quota purposes.
type Tier string

// Quota tiers.
const (
	TierGuest Tier = "guest"
	TierUser  Tier = "user"
	TierPro   Tier = "pro"
)

// TierResolver resolves an authenticated user ID to a tier. The profile
// backend behind it is an external collaborator; unauthenticated callers
// never reach a resolver (they are always guests).
type TierResolver interface {
	Resolve(ctx context.Context, userID string) (Tier, error)
}

// StaticResolver resolves tiers from a fixed map, defaulting to TierUser
// for unknown IDs. Used for config-declared pro users and in tests.
type StaticResolver struct {
	tiers map[string]Tier
}

var _ TierResolver = (*StaticResolver)(nil)

// NewStaticResolver builds a resolver that answers TierPro for the given
// user IDs and TierUser for everyone else.
func NewStaticResolver(proUsers []string) *StaticResolver {
	tiers := make(map[string]Tier, len(proUsers))
	for _, id := range proUsers {
		tiers[id] = TierPro
	}
	return &StaticResolver{tiers: tiers}
}

// Resolve implements TierResolver.
func (s *StaticResolver) Resolve(_ context.Context, userID string) (Tier, error) {
	if tier, ok := s.tiers[userID]; ok {
		return tier, nil
	}
	return TierUser, nil
}

// Ristretto sizing for the tier cache. Tiers are tiny values; the cache is
// bounded by entry count, not bytes.
const (
	tierCacheCounters = 100_000
	tierCacheMaxCost  = 10_000
)

// CachedResolver wraps a TierResolver with a ristretto TTL cache so the
// profile backend is consulted at most once per user per TTL, not on every
// admission decision.
type CachedResolver struct {
	inner TierResolver
	cache *ristretto.Cache[string, Tier]
	ttl   time.Duration
}

var _ TierResolver = (*CachedResolver)(nil)

// NewCachedResolver creates a caching wrapper around inner.
func NewCachedResolver(inner TierResolver, ttl time.Duration) (*CachedResolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, Tier]{
		NumCounters: tierCacheCounters,
		MaxCost:     tierCacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &CachedResolver{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}, nil
}

// Resolve implements TierResolver. Resolver errors are never cached.
func (c *CachedResolver) Resolve(ctx context.Context, userID string) (Tier, error) {
	if tier, found := c.cache.Get(userID); found {
		return tier, nil
	}

	tier, err := c.inner.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	c.cache.SetWithTTL(userID, tier, 1, c.ttl)
	return tier, nil
}

// Close releases the cache.
func (c *CachedResolver) Close() {
	c.cache.Close()
}
