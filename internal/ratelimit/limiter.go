// Package ratelimit provides the fixed-window request throttle.
//
// The algorithm is deliberately a fixed window rather than a sliding window
// or token bucket: one counter per key, one atomic increment per call, and
// trivially correct reasoning across processes. The trade-off is a known
// boundary-burst property (up to 2x the limit can be admitted across a
// window boundary) which is acceptable for abuse prevention, not a
// billing-grade guarantee.
//
// Every call to Check mutates shared state exactly once; callers must call
// it exactly once per logical request.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
)

// Scope namespaces limiter keys by route purpose so limits never leak
// across unrelated endpoints.
type Scope string

// Route scopes.
const (
	ScopeGenerate Scope = "generate"
	ScopeFeedback Scope = "feedback"
	ScopeEvents   Scope = "events"
)

// Key derives the limiter identifier for a scope and caller.
func Key(scope Scope, caller identity.Caller) string {
	return string(scope) + ":" + caller.Key()
}

// Rate limit header names.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Headers returns the caller-visible rate limit headers for this result.
// Reset is expressed as unix seconds.
func (r Result) Headers() map[string]string {
	return map[string]string{
		HeaderLimit:     strconv.Itoa(r.Limit),
		HeaderRemaining: strconv.Itoa(r.Remaining),
		HeaderReset:     strconv.FormatInt(r.ResetAt.Unix(), 10),
	}
}

// Apply writes the rate limit headers to an HTTP response.
func (r Result) Apply(h http.Header) {
	for name, value := range r.Headers() {
		h.Set(name, value)
	}
}

// Limiter is the fixed-window throttle over a counter store.
type Limiter struct {
	store counter.Store
}

// New creates a Limiter backed by the given store.
func New(store counter.Store) *Limiter {
	return &Limiter{store: store}
}

// Check atomically counts one request against identifier's current window
// and reports whether it is within limit. The counter is incremented even
// when the request is rejected; the window's TTL is set only on creation,
// so rejected traffic never extends it.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Result, error) {
	count, windowStart, err := l.store.Increment(ctx, identifier, window)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Limit:   limit,
		ResetAt: windowStart.Add(window),
	}
	if count > int64(limit) {
		return result, nil
	}

	result.Allowed = true
	result.Remaining = limit - int(count)
	return result, nil
}
