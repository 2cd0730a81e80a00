package counter

import "time"

// SetClock overrides the redis store's clock (for testing).
func (r *RedisStore) SetClock(now func() time.Time) {
	r.now = now
}
