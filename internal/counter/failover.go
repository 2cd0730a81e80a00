package counter

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Failover breaker defaults. The breaker only guards the store backend; the
// request path itself is never failed by a store outage.
const (
	failoverFailureThreshold = 5
	failoverOpenDuration     = 15 * time.Second
	failoverHalfOpenProbes   = 2
)

// FailoverStore is the production store: a shared primary guarded by a
// circuit breaker, degrading to the in-process fallback when the primary
// errors or the breaker is open. A degraded store keeps admitting requests
// but counts per-process, so enforcement is best-effort until the primary
// recovers.
type FailoverStore struct {
	primary  Store
	fallback *MemoryStore
	cb       *gobreaker.TwoStepCircuitBreaker[struct{}]
	log      zerolog.Logger
}

var (
	_ Store        = (*FailoverStore)(nil)
	_ ModeReporter = (*FailoverStore)(nil)
	_ Pinger       = (*FailoverStore)(nil)
)

// NewFailoverStore wraps primary with breaker-guarded failover to fallback.
func NewFailoverStore(primary Store, fallback *MemoryStore) *FailoverStore {
	log := logger().With().Str("backend", "failover").Logger()

	settings := gobreaker.Settings{
		Name:        "counter-store",
		MaxRequests: failoverHalfOpenProbes,
		Timeout:     failoverOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failoverFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("store", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("counter store breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Absence is a valid answer; cancellation is the caller's doing.
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	}

	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		cb:       gobreaker.NewTwoStepCircuitBreaker[struct{}](settings),
		log:      log,
	}
}

// Increment implements Store.
func (f *FailoverStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	done, allowErr := f.cb.Allow()
	if allowErr != nil {
		return f.fallback.Increment(ctx, key, window)
	}

	count, windowStart, err := f.primary.Increment(ctx, key, window)
	done(err)
	if err != nil {
		f.logDegraded("increment", key, err)
		return f.fallback.Increment(ctx, key, window)
	}
	return count, windowStart, nil
}

// Get implements Store.
func (f *FailoverStore) Get(ctx context.Context, key string) (int64, error) {
	done, allowErr := f.cb.Allow()
	if allowErr != nil {
		return f.fallback.Get(ctx, key)
	}

	value, err := f.primary.Get(ctx, key)
	done(err)
	if err != nil && !errors.Is(err, ErrNotFound) {
		f.logDegraded("get", key, err)
		return f.fallback.Get(ctx, key)
	}
	return value, err
}

// Set implements Store.
func (f *FailoverStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	done, allowErr := f.cb.Allow()
	if allowErr != nil {
		return f.fallback.Set(ctx, key, value, ttl)
	}

	err := f.primary.Set(ctx, key, value, ttl)
	done(err)
	if err != nil {
		f.logDegraded("set", key, err)
		return f.fallback.Set(ctx, key, value, ttl)
	}
	return nil
}

// Close closes both backends, returning the first error.
func (f *FailoverStore) Close() error {
	primaryErr := f.primary.Close()
	if fallbackErr := f.fallback.Close(); primaryErr == nil {
		return fallbackErr
	}
	return primaryErr
}

// Mode implements ModeReporter. Degraded while the breaker is holding
// traffic away from the shared backend.
func (f *FailoverStore) Mode() string {
	if f.cb.State() != gobreaker.StateClosed {
		return ModeDegraded
	}
	return ModeShared
}

// Ping reports the primary's health; a degraded store is still serving.
func (f *FailoverStore) Ping(ctx context.Context) error {
	if p, ok := f.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (f *FailoverStore) logDegraded(op, key string, err error) {
	f.log.Warn().
		Err(err).
		Str("op", op).
		Str("key", key).
		Msg("shared counter backend failed, serving from in-process fallback")
}
