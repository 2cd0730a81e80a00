// Package quota provides the tiered daily generation allowance.
//
// Consumption is accounted in UTC-day buckets derived purely from the key
// (quota:<tier>:<caller>:<YYYY-MM-DD>), so crossing midnight UTC resets
// every identity lazily on next access; there is no background sweep.
// Accounting is monotonic: a consume attempt that lands over the limit is
// still recorded and never refunded. The orchestrator checks Status before
// Consume, which keeps post-limit increments a rare race, not the common
// path. Clock skew across instances can bucket a request on either side of
// midnight; that ambiguity is accepted.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
)

// bucketTTL bounds how long a day bucket lives in the store. The key
// carries the date, so the TTL only needs to outlast the day it names.
const bucketTTL = 24 * time.Hour

// Status is a caller's quota snapshot. Limit and Remaining are None for
// the unlimited pro tier and marshal as null.
type Status struct {
	Plan      Tier           `json:"plan"`
	Limit     mo.Option[int] `json:"limit"`
	Remaining mo.Option[int] `json:"remaining"`
	IsPro     bool           `json:"is_pro"`
}

// Consumption is the outcome of a consume attempt. When Allowed is false
// the increment has still been recorded; callers must check Allowed before
// treating the attempt as successful.
type Consumption struct {
	Allowed bool
	Status  Status
}

// Accountant tracks per-tier daily consumption on top of the counter
// store. Safe for concurrent use: the only mutation is the store's atomic
// increment, so racing consumers can never net-overshoot the limit.
type Accountant struct {
	store    counter.Store
	resolver TierResolver
	cfg      func() Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewAccountant creates an Accountant. cfg is called per operation so
// policy changes apply on hot-reload without rebuilding the accountant.
func NewAccountant(store counter.Store, resolver TierResolver, cfg func() Config, log zerolog.Logger) *Accountant {
	return &Accountant{
		store:    store,
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "quota").Logger(),
	}
}

// Status returns the caller's current quota without mutating consumption.
// Store and resolver failures degrade to optimistic answers rather than
// failing the request path.
func (a *Accountant) Status(ctx context.Context, caller identity.Caller) Status {
	tier := a.tierFor(ctx, caller)
	limit, unlimited := a.limitFor(tier)
	if unlimited {
		return proStatus()
	}

	consumed, err := a.store.Get(ctx, a.bucketKey(tier, caller))
	if err != nil && !errors.Is(err, counter.ErrNotFound) {
		a.log.Warn().Err(err).Stringer("caller", caller).Msg("quota read failed, reporting full allowance")
		consumed = 0
	}

	return Status{
		Plan:      tier,
		Limit:     mo.Some(limit),
		Remaining: mo.Some(clampRemaining(limit, consumed)),
	}
}

// Consume atomically reserves one unit of today's allowance. Over-limit
// attempts return Allowed=false with the increment kept (no refund).
// The pro tier bypasses accounting entirely.
func (a *Accountant) Consume(ctx context.Context, caller identity.Caller) (Consumption, error) {
	tier := a.tierFor(ctx, caller)
	limit, unlimited := a.limitFor(tier)
	if unlimited {
		return Consumption{Allowed: true, Status: proStatus()}, nil
	}

	count, _, err := a.store.Increment(ctx, a.bucketKey(tier, caller), bucketTTL)
	if err != nil {
		return Consumption{}, fmt.Errorf("quota: consume for %s: %w", caller, err)
	}

	status := Status{
		Plan:      tier,
		Limit:     mo.Some(limit),
		Remaining: mo.Some(clampRemaining(limit, count)),
	}
	return Consumption{Allowed: count <= int64(limit), Status: status}, nil
}

// bucketKey derives the UTC-day bucket for a tier and caller. Pure key
// derivation is the whole reset mechanism: tomorrow is a different key.
func (a *Accountant) bucketKey(tier Tier, caller identity.Caller) string {
	day := a.now().UTC().Format("2006-01-02")
	return "quota:" + string(tier) + ":" + caller.Key() + ":" + day
}

// tierFor classifies the caller. Only authenticated users hit the
// resolver; a resolver failure falls back to the base user tier so the
// profile backend being down never blocks admission.
func (a *Accountant) tierFor(ctx context.Context, caller identity.Caller) Tier {
	if caller.Kind != identity.KindUser {
		return TierGuest
	}

	tier, err := a.resolver.Resolve(ctx, caller.ID)
	if err != nil {
		a.log.Warn().Err(err).Str("user", caller.ID).Msg("tier resolution failed, assuming user tier")
		return TierUser
	}
	return tier
}

// limitFor returns the daily limit for a tier, or unlimited=true for pro.
func (a *Accountant) limitFor(tier Tier) (limit int, unlimited bool) {
	cfg := a.cfg()
	switch tier {
	case TierPro:
		return 0, true
	case TierUser:
		return cfg.GetUserDaily(), false
	default:
		return cfg.GetGuestDaily(), false
	}
}

func proStatus() Status {
	return Status{
		Plan:      TierPro,
		Limit:     mo.None[int](),
		Remaining: mo.None[int](),
		IsPro:     true,
	}
}

func clampRemaining(limit int, consumed int64) int {
	remaining := limit - int(consumed)
	if remaining < 0 {
		return 0
	}
	return remaining
}
