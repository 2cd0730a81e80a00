package breaker

import "time"

// SetClock overrides the clock of the named breaker (for testing).
func (r *Registry) SetClock(operation string, now func() time.Time) {
	r.get(operation).now = now
}
