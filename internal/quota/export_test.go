package quota

import "time"

// SetClock overrides the accountant's clock (for testing).
func (a *Accountant) SetClock(now func() time.Time) {
	a.now = now
}

// BucketKey exposes day-bucket derivation (for testing).
func (a *Accountant) BucketKey(tier Tier, callerKey string) string {
	day := a.now().UTC().Format("2006-01-02")
	return "quota:" + string(tier) + ":" + callerKey + ":" + day
}
