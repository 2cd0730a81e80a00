package di

import (
	"github.com/samber/do/v2"

	"github.com/capgate/capgate/internal/admission"
	"github.com/capgate/capgate/internal/breaker"
	"github.com/capgate/capgate/internal/ratelimit"
	"github.com/capgate/capgate/internal/upstream"
)

// LimiterService wraps the fixed-window rate limiter.
type LimiterService struct {
	Limiter *ratelimit.Limiter
}

// NewLimiter creates the rate limiter over the counter store.
func NewLimiter(i do.Injector) (*LimiterService, error) {
	storeSvc := do.MustInvoke[*StoreService](i)
	return &LimiterService{Limiter: ratelimit.New(storeSvc.Store)}, nil
}

// BreakerService wraps the circuit breaker registry.
type BreakerService struct {
	Registry *breaker.Registry
}

// NewBreakers creates the breaker registry. Breaker thresholds are fixed
// at startup; policy changes require a restart so open circuits are never
// silently re-armed mid-incident.
func NewBreakers(i do.Injector) (*BreakerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	return &BreakerService{Registry: breaker.NewRegistry(cfgSvc.Get().Breaker, *logSvc.Logger)}, nil
}

// UpstreamService wraps the caption provider client.
type UpstreamService struct {
	Generator upstream.Generator
}

// NewUpstream creates the provider client.
func NewUpstream(i do.Injector) (*UpstreamService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	return &UpstreamService{Generator: upstream.NewClient(cfgSvc.Get().Upstream, *logSvc.Logger)}, nil
}

// AdmissionService wraps the admission controller.
type AdmissionService struct {
	Controller *admission.Controller
}

// NewAdmission wires the admission pipeline.
func NewAdmission(i do.Injector) (*AdmissionService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	limiterSvc := do.MustInvoke[*LimiterService](i)
	quotaSvc := do.MustInvoke[*QuotaService](i)
	breakerSvc := do.MustInvoke[*BreakerService](i)
	upstreamSvc := do.MustInvoke[*UpstreamService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	ctrl := admission.NewController(
		limiterSvc.Limiter,
		quotaSvc.Accountant,
		breakerSvc.Registry,
		upstreamSvc.Generator,
		cfgSvc,
		*logSvc.Logger,
	)

	return &AdmissionService{Controller: ctrl}, nil
}
