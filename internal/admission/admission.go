// Package admission decides whether a generation request proceeds to the
// upstream provider. A request passes through identity resolution, the
// per-route rate limit, the daily quota, the tier feature gate, and the
// circuit breaker, in that order; the first check that fails determines the
// decision. Infrastructure failures fail open: a broken counter store
// degrades rate limiting and quota rather than blocking traffic.
package admission

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/capgate/capgate/internal/breaker"
	"github.com/capgate/capgate/internal/config"
	"github.com/capgate/capgate/internal/identity"
	"github.com/capgate/capgate/internal/quota"
	"github.com/capgate/capgate/internal/ratelimit"
	"github.com/capgate/capgate/internal/upstream"
)

// OpGenerate is the breaker operation name guarding upstream generation.
const OpGenerate = "caption-generate"

// Outcome tags an admission decision.
type Outcome string

// Decision outcomes. Exactly one applies per request.
const (
	OutcomeAllowed              Outcome = "allowed"
	OutcomeRateLimited          Outcome = "rate_limited"
	OutcomeQuotaExceeded        Outcome = "quota_exceeded"
	OutcomePermissionDenied     Outcome = "permission_denied"
	OutcomeCircuitOpen          Outcome = "circuit_open"
	OutcomeUpstreamFailure      Outcome = "upstream_failure"
	OutcomeIdentityUnresolvable Outcome = "identity_unresolvable"
)

// Request is a caption-generation attempt entering admission.
type Request struct {
	Caller    identity.Caller
	Prompt    string
	ImageData string
	Mode      string
}

// Decision is the orchestrator's answer. Outcome selects which of the
// remaining fields are meaningful: RateLimit is set whenever the limiter
// was consulted, Quota whenever the caller's tier was resolved, Result only
// for OutcomeAllowed, RetryAfter only for OutcomeCircuitOpen, and Err for
// OutcomeUpstreamFailure.
type Decision struct {
	Outcome    Outcome
	RateLimit  ratelimit.Result
	Quota      quota.Status
	Result     upstream.Result
	RetryAfter time.Duration
	Err        error
}

// Controller orchestrates the admission checks for generation requests and
// provides the shared rate-limit path for the auxiliary routes.
type Controller struct {
	limiter   *ratelimit.Limiter
	quota     *quota.Accountant
	breakers  *breaker.Registry
	generator upstream.Generator
	runtime   config.RuntimeConfig
	log       zerolog.Logger
}

// NewController wires the admission pipeline.
func NewController(
	limiter *ratelimit.Limiter,
	accountant *quota.Accountant,
	breakers *breaker.Registry,
	generator upstream.Generator,
	runtime config.RuntimeConfig,
	log zerolog.Logger,
) *Controller {
	return &Controller{
		limiter:   limiter,
		quota:     accountant,
		breakers:  breakers,
		generator: generator,
		runtime:   runtime,
		log:       log.With().Str("component", "admission").Logger(),
	}
}

// Admit runs the full admission pipeline for a generation request.
// Quota consumed by a request that later fails upstream is not refunded.
func (c *Controller) Admit(ctx context.Context, req Request) Decision {
	if !req.Caller.Resolvable() {
		return Decision{Outcome: OutcomeIdentityUnresolvable}
	}

	limit := c.Throttle(ctx, ratelimit.ScopeGenerate, req.Caller)
	if !limit.Allowed {
		return Decision{Outcome: OutcomeRateLimited, RateLimit: limit}
	}

	status := c.quota.Status(ctx, req.Caller)
	if remaining, ok := status.Remaining.Get(); ok && remaining <= 0 {
		return Decision{Outcome: OutcomeQuotaExceeded, RateLimit: limit, Quota: status}
	}

	if c.requiresPro(req) && !status.IsPro {
		return Decision{Outcome: OutcomePermissionDenied, RateLimit: limit, Quota: status}
	}

	status, consumed := c.consume(ctx, req.Caller, status)
	if !consumed {
		// lost the race against a concurrent request on the same bucket
		return Decision{Outcome: OutcomeQuotaExceeded, RateLimit: limit, Quota: status}
	}

	result, err := breaker.Do(ctx, c.breakers, OpGenerate, func(ctx context.Context) (upstream.Result, error) {
		return c.generator.Generate(ctx, upstream.Request{
			Prompt:    req.Prompt,
			ImageData: req.ImageData,
			Mode:      req.Mode,
		})
	})
	if err != nil {
		if errors.Is(err, breaker.ErrCircuitOpen) {
			return Decision{
				Outcome:    OutcomeCircuitOpen,
				RateLimit:  limit,
				Quota:      status,
				RetryAfter: c.breakers.RetryAfter(OpGenerate),
			}
		}
		return Decision{Outcome: OutcomeUpstreamFailure, RateLimit: limit, Quota: status, Err: err}
	}

	return Decision{
		Outcome:   OutcomeAllowed,
		RateLimit: limit,
		Quota:     status,
		Result:    result,
	}
}

// QuotaStatus reports the caller's current allowance without consuming.
func (c *Controller) QuotaStatus(ctx context.Context, caller identity.Caller) quota.Status {
	return c.quota.Status(ctx, caller)
}

// Throttle counts one request against the caller's fixed window for the
// given scope. Limiter errors admit the request; throttling is protection
// for the upstream, not a correctness guarantee, so a broken store must not
// turn into an outage of its own.
func (c *Controller) Throttle(ctx context.Context, scope ratelimit.Scope, caller identity.Caller) ratelimit.Result {
	limit, window := c.routePolicy(scope)

	result, err := c.limiter.Check(ctx, ratelimit.Key(scope, caller), limit, window)
	if err != nil {
		c.log.Warn().Err(err).
			Str("scope", string(scope)).
			Stringer("caller", caller).
			Msg("rate limit check failed, admitting request")
		return ratelimit.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetAt:   time.Now().Add(window),
		}
	}
	return result
}

// consume reserves one unit of quota, degrading to the pre-consume status
// when the store is unreachable.
func (c *Controller) consume(ctx context.Context, caller identity.Caller, prior quota.Status) (quota.Status, bool) {
	cons, err := c.quota.Consume(ctx, caller)
	if err != nil {
		c.log.Warn().Err(err).Stringer("caller", caller).Msg("quota consume failed, admitting request")
		return prior, true
	}
	return cons.Status, cons.Allowed
}

// requiresPro reports whether the request uses a pro-gated feature: image
// input or one of the configured pro-only modes.
func (c *Controller) requiresPro(req Request) bool {
	if req.ImageData != "" {
		return true
	}
	if req.Mode == "" {
		return false
	}
	return slices.Contains(c.runtime.Get().Quota.GetProModes(), req.Mode)
}

// routePolicy returns the live limit and window for a route scope.
func (c *Controller) routePolicy(scope ratelimit.Scope) (int, time.Duration) {
	limits := c.runtime.Get().Limits
	switch scope {
	case ratelimit.ScopeFeedback:
		return limits.Feedback.GetRequests(config.DefaultFeedbackLimit), limits.Feedback.GetWindow()
	case ratelimit.ScopeEvents:
		return limits.Events.GetRequests(config.DefaultEventsLimit), limits.Events.GetWindow()
	default:
		return limits.Generate.GetRequests(config.DefaultGenerateLimit), limits.Generate.GetWindow()
	}
}
