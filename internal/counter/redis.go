package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// incrementScript performs INCR + PEXPIRE-on-create + PTTL as a single
// server-side operation, so concurrent callers from any process observe a
// strictly increasing count and a stable window.
var incrementScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisStore is the shared counter store. Counters live in Redis, so the
// atomic increment is correct across every server process pointing at the
// same backend.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
	now    func() time.Time
}

var (
	_ Store        = (*RedisStore)(nil)
	_ ModeReporter = (*RedisStore)(nil)
	_ Pinger       = (*RedisStore)(nil)
)

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		log:    logger().With().Str("backend", "redis").Logger(),
		now:    time.Now,
	}
}

// Increment implements Store. The returned window start is derived from the
// key's remaining TTL, so every caller in the window sees the same reset time.
func (r *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if window <= 0 {
		window = time.Second
	}

	res, err := incrementScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("counter: increment %q: %w", key, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("counter: increment %q: unexpected script reply of length %d", key, len(res))
	}

	count, ok := res[0].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("counter: increment %q: non-integer count %T", key, res[0])
	}
	pttl, ok := res[1].(int64)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("counter: increment %q: non-integer ttl %T", key, res[1])
	}

	remaining := time.Duration(pttl) * time.Millisecond
	windowStart := r.now().Add(remaining).Add(-window)

	r.log.Debug().
		Str("key", key).
		Int64("count", count).
		Dur("remaining", remaining).
		Msg("counter increment")

	return count, windowStart, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	value, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("counter: get %q: %w", key, err)
	}
	return value, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("counter: set %q: %w", key, err)
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Mode implements ModeReporter.
func (r *RedisStore) Mode() string {
	return ModeShared
}

// Ping implements Pinger.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
