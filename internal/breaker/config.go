// Package breaker provides the per-operation circuit breaker guarding
// calls to the upstream caption provider.
//
// The package implements:
//   - Circuit breaker state machine (CLOSED -> OPEN -> HALF_OPEN -> CLOSED)
//   - Failure classification by upstream status code
//   - Per-operation stats and a forced-reset escape hatch
//
// The breaker prevents cascading failures by failing fast while the
// upstream is known-bad, then cautiously probing it before fully resuming
// traffic. Only failures carrying a retryable upstream status (or a
// timeout) count toward opening the circuit; client mistakes pass through
// without touching state.
package breaker

import "time"

// Default configuration values.
const (
	DefaultFailureThreshold = 5     // counted failures to open circuit
	DefaultOpenTimeoutMS    = 60000 // 60 seconds before half-open
	DefaultHalfOpenProbes   = 3     // probe successes required to close
)

// DefaultRetryableStatuses are the upstream status codes that indicate
// unavailability rather than a caller mistake.
var DefaultRetryableStatuses = []int{429, 500, 502, 503, 504}

// Config defines circuit breaker behavior. All values are policy
// constants, overridable via configuration.
type Config struct {
	// FailureThreshold is the number of counted failures before opening
	// the circuit. Default: 5
	FailureThreshold int `yaml:"failure_threshold" toml:"failure_threshold"`

	// OpenTimeoutMS is how long, in milliseconds, the circuit stays open
	// before the next call is let through as a half-open probe.
	// Default: 60000 (60 seconds)
	OpenTimeoutMS int `yaml:"open_timeout_ms" toml:"open_timeout_ms"`

	// HalfOpenProbes is the number of consecutive probe successes needed
	// to close a half-open circuit. It also caps how many probe calls may
	// be in flight at once while half-open. Default: 3
	HalfOpenProbes int `yaml:"half_open_probes" toml:"half_open_probes"`

	// RetryableStatuses is the set of upstream status codes counted as
	// breaker failures. Default: 429, 500, 502, 503, 504.
	RetryableStatuses []int `yaml:"retryable_statuses" toml:"retryable_statuses"`
}

// GetFailureThreshold returns the configured failure threshold or default 5.
func (c *Config) GetFailureThreshold() int {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// GetOpenTimeout returns the open timeout as time.Duration.
// Returns default 60s if not set or negative.
func (c *Config) GetOpenTimeout() time.Duration {
	if c.OpenTimeoutMS <= 0 {
		return time.Duration(DefaultOpenTimeoutMS) * time.Millisecond
	}
	return time.Duration(c.OpenTimeoutMS) * time.Millisecond
}

// GetHalfOpenProbes returns the configured probe threshold or default 3.
func (c *Config) GetHalfOpenProbes() int {
	if c.HalfOpenProbes <= 0 {
		return DefaultHalfOpenProbes
	}
	return c.HalfOpenProbes
}

// GetRetryableStatuses returns the retryable status set with default fallback.
func (c *Config) GetRetryableStatuses() []int {
	if len(c.RetryableStatuses) == 0 {
		return DefaultRetryableStatuses
	}
	return c.RetryableStatuses
}
