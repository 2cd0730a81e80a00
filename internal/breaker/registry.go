package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Registry holds one breaker per named operation, created lazily on first
// use. Breaker state is process-wide by construction: the registry is built
// once and injected wherever calls need guarding.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
	log      zerolog.Logger
}

// NewRegistry creates an empty registry using cfg for every breaker.
func NewRegistry(cfg Config, log zerolog.Logger) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
		log:      log.With().Str("component", "breaker").Logger(),
	}
}

// get returns the breaker for operation, creating it if absent.
func (r *Registry) get(operation string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[operation]
	if !ok {
		b = newBreaker(operation, r.cfg, r.log)
		r.breakers[operation] = b
	}
	return b
}

// Stats returns a snapshot of the named breaker. An operation that has
// never been called reports a fresh closed breaker.
func (r *Registry) Stats(operation string) Stats {
	return r.get(operation).Stats()
}

// StatsAll returns snapshots for every breaker the registry has created.
func (r *Registry) StatsAll() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Stats()
	}
	return out
}

// Reset forcibly closes the named breaker and zeroes its counters.
func (r *Registry) Reset(operation string) {
	r.get(operation).Reset()
}

// Do runs fn through the named breaker. If the circuit is open and its
// timeout has not elapsed, fn is never invoked and ErrCircuitOpen is
// returned. Otherwise the outcome of fn is recorded: successes and counted
// failures advance the state machine, everything else passes through
// untouched.
func Do[T any](ctx context.Context, r *Registry, operation string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	b := r.get(operation)
	if err := b.allow(); err != nil {
		return zero, err
	}

	result, err := fn(ctx)
	b.record(err)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// RetryAfter estimates how long until the named breaker's next half-open
// probe, for Retry-After hints on fast-failed requests.
func (r *Registry) RetryAfter(operation string) time.Duration {
	return r.get(operation).retryAfter()
}
