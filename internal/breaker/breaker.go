package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State represents the circuit breaker state.
type State int

// Circuit breaker states.
const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of a breaker.
type Stats struct {
	State           State     `json:"-"`
	StateName       string    `json:"state"`
	IsOpen          bool      `json:"is_open"`
	FailureCount    int       `json:"failure_count"`
	SuccessCount    int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time"`
}

// Breaker is the state machine for one named operation. All state is
// mutated under a single mutex; the wrapped operation itself runs outside
// the lock so slow upstream calls never serialize each other.
type Breaker struct {
	mu              sync.Mutex
	name            string
	state           State
	failureCount    int
	successCount    int
	probesInFlight  int
	lastFailureTime time.Time

	failureThreshold int
	openTimeout      time.Duration
	halfOpenProbes   int
	retryable        map[int]bool

	now func() time.Time
	log zerolog.Logger
}

// newBreaker creates a closed breaker for the named operation.
func newBreaker(name string, cfg Config, log zerolog.Logger) *Breaker {
	retryable := make(map[int]bool)
	for _, status := range cfg.GetRetryableStatuses() {
		retryable[status] = true
	}

	return &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: cfg.GetFailureThreshold(),
		openTimeout:      cfg.GetOpenTimeout(),
		halfOpenProbes:   cfg.GetHalfOpenProbes(),
		retryable:        retryable,
		now:              time.Now,
		log:              log.With().Str("operation", name).Logger(),
	}
}

// allow decides whether a call may proceed. An open circuit whose timeout
// has elapsed transitions to half-open and admits the call as a probe; the
// transition is lazy, evaluated on the call path rather than by a timer.
// While half-open, at most halfOpenProbes calls may be in flight at once
// so a still-recovering upstream never sees a thundering herd.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.openTimeout {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.successCount = 0
		b.probesInFlight = 0
	}

	if b.probesInFlight >= b.halfOpenProbes {
		return ErrCircuitOpen
	}
	b.probesInFlight++
	return nil
}

// record classifies the outcome of a call and advances the state machine.
// Every admitted call reaches here exactly once, so the in-flight probe
// count is released even for errors that do not count as failures.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.probesInFlight > 0 {
		b.probesInFlight--
	}

	switch {
	case err == nil:
		b.recordSuccess()
	case b.countsAsFailure(err):
		b.recordFailure()
	}
}

// recordSuccess advances the state machine after a successful call.
// Callers hold mu.
func (b *Breaker) recordSuccess() {
	b.successCount++
	if b.state == StateHalfOpen && b.successCount >= b.halfOpenProbes {
		b.transition(StateClosed)
		b.failureCount = 0
	}
}

// recordFailure advances the state machine after a counted failure.
// Callers hold mu.
func (b *Breaker) recordFailure() {
	b.failureCount++
	b.lastFailureTime = b.now()

	switch {
	case b.state == StateHalfOpen:
		// A failed probe sends the circuit straight back to open.
		b.transition(StateOpen)
	case b.state == StateClosed && b.failureCount >= b.failureThreshold:
		b.transition(StateOpen)
	}
}

// retryAfter reports how long until the open timeout elapses, measured on
// the breaker's own clock. Zero when the circuit is not open.
func (b *Breaker) retryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen || b.lastFailureTime.IsZero() {
		return 0
	}
	remaining := b.openTimeout - b.now().Sub(b.lastFailureTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// countsAsFailure reports whether err indicates upstream unavailability.
// Timeouts count; cancellation and errors without a retryable status do not.
func (b *Breaker) countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var coder StatusCoder
	if errors.As(err, &coder) {
		return b.retryable[coder.StatusCode()]
	}
	return false
}

// Stats returns a snapshot without mutating state.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:           b.state,
		StateName:       b.state.String(),
		IsOpen:          b.state == StateOpen,
		FailureCount:    b.failureCount,
		SuccessCount:    b.successCount,
		LastFailureTime: b.lastFailureTime,
	}
}

// Reset forcibly returns the breaker to closed with zeroed counters.
// Operational escape hatch, not part of normal flow.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.transition(StateClosed)
	}
	b.failureCount = 0
	b.successCount = 0
	b.lastFailureTime = time.Time{}
}

// transition switches state and logs the change. Callers hold mu.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to

	event := b.log.Info()
	if to == StateOpen {
		event = b.log.Warn()
	}
	event.
		Str("from", from.String()).
		Str("to", to.String()).
		Int("failure_count", b.failureCount).
		Msg("circuit breaker state change")
}
