package admission_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capgate/capgate/internal/admission"
	"github.com/capgate/capgate/internal/breaker"
	"github.com/capgate/capgate/internal/config"
	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
	"github.com/capgate/capgate/internal/quota"
	"github.com/capgate/capgate/internal/ratelimit"
	"github.com/capgate/capgate/internal/upstream"
)

type fakeGenerator struct {
	result upstream.Result
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, _ upstream.Request) (upstream.Result, error) {
	g.calls++
	if g.err != nil {
		return upstream.Result{}, g.err
	}
	return g.result, nil
}

type errorStore struct{}

func (errorStore) Increment(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, counter.ErrUnavailable
}
func (errorStore) Get(context.Context, string) (int64, error) { return 0, counter.ErrUnavailable }
func (errorStore) Set(context.Context, string, int64, time.Duration) error {
	return counter.ErrUnavailable
}
func (errorStore) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		Limits: config.LimitsConfig{
			Generate: config.RouteLimit{Requests: 100, WindowMS: 60000},
		},
	}
}

func newController(t *testing.T, gen upstream.Generator, cfg *config.Config) *admission.Controller {
	t.Helper()

	store := counter.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	runtime := config.NewRuntime(cfg)
	log := zerolog.Nop()

	accountant := quota.NewAccountant(
		store,
		quota.NewStaticResolver(cfg.Quota.ProUsers),
		func() quota.Config { return runtime.Get().Quota },
		log,
	)

	return admission.NewController(
		ratelimit.New(store),
		accountant,
		breaker.NewRegistry(cfg.Breaker, log),
		gen,
		runtime,
		log,
	)
}

func TestAdmitAllowed(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Caption: "a dog on a beach", Model: "caption-large"}}
	ctrl := newController(t, gen, testConfig())

	d := ctrl.Admit(context.Background(), admission.Request{
		Caller: identity.User("u-1"),
		Prompt: "describe this",
	})

	assert.Equal(t, admission.OutcomeAllowed, d.Outcome)
	assert.Equal(t, "a dog on a beach", d.Result.Caption)
	assert.Equal(t, 1, gen.calls)

	remaining, ok := d.Quota.Remaining.Get()
	require.True(t, ok)
	assert.Equal(t, quota.DefaultUserDaily-1, remaining)
	assert.True(t, d.RateLimit.Allowed)
}

func TestAdmitUnresolvableIdentity(t *testing.T) {
	gen := &fakeGenerator{}
	ctrl := newController(t, gen, testConfig())

	d := ctrl.Admit(context.Background(), admission.Request{Caller: identity.Unknown()})

	assert.Equal(t, admission.OutcomeIdentityUnresolvable, d.Outcome)
	assert.Zero(t, gen.calls)
}

func TestAdmitRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.Generate = config.RouteLimit{Requests: 2, WindowMS: 60000}

	gen := &fakeGenerator{result: upstream.Result{Caption: "ok"}}
	ctrl := newController(t, gen, cfg)

	caller := identity.User("u-1")
	for range 2 {
		d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
		require.Equal(t, admission.OutcomeAllowed, d.Outcome)
	}

	d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
	assert.Equal(t, admission.OutcomeRateLimited, d.Outcome)
	assert.False(t, d.RateLimit.Allowed)
	assert.Equal(t, 2, d.RateLimit.Limit)
	assert.Equal(t, 2, gen.calls)
}

func TestAdmitQuotaExceeded(t *testing.T) {
	gen := &fakeGenerator{result: upstream.Result{Caption: "ok"}}
	ctrl := newController(t, gen, testConfig())

	caller := identity.IP("203.0.113.7")
	for range quota.DefaultGuestDaily {
		d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
		require.Equal(t, admission.OutcomeAllowed, d.Outcome)
	}

	d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
	assert.Equal(t, admission.OutcomeQuotaExceeded, d.Outcome)
	assert.Equal(t, quota.DefaultGuestDaily, gen.calls)

	remaining, ok := d.Quota.Remaining.Get()
	require.True(t, ok)
	assert.Zero(t, remaining)
}

func TestAdmitImageRequiresPro(t *testing.T) {
	cfg := testConfig()
	cfg.Quota.ProUsers = []string{"pro-1"}

	gen := &fakeGenerator{result: upstream.Result{Caption: "ok"}}
	ctrl := newController(t, gen, cfg)

	d := ctrl.Admit(context.Background(), admission.Request{
		Caller:    identity.User("u-1"),
		Prompt:    "p",
		ImageData: "aGVsbG8=",
	})
	assert.Equal(t, admission.OutcomePermissionDenied, d.Outcome)
	assert.Zero(t, gen.calls)

	d = ctrl.Admit(context.Background(), admission.Request{
		Caller:    identity.User("pro-1"),
		Prompt:    "p",
		ImageData: "aGVsbG8=",
	})
	assert.Equal(t, admission.OutcomeAllowed, d.Outcome)
	assert.True(t, d.Quota.IsPro)
}

func TestAdmitProModes(t *testing.T) {
	cfg := testConfig()
	cfg.Quota.ProUsers = []string{"pro-1"}

	gen := &fakeGenerator{result: upstream.Result{Caption: "ok"}}
	ctrl := newController(t, gen, cfg)

	d := ctrl.Admit(context.Background(), admission.Request{
		Caller: identity.User("u-1"),
		Prompt: "p",
		Mode:   "detailed",
	})
	assert.Equal(t, admission.OutcomePermissionDenied, d.Outcome)

	d = ctrl.Admit(context.Background(), admission.Request{
		Caller: identity.User("u-1"),
		Prompt: "p",
		Mode:   "concise",
	})
	assert.Equal(t, admission.OutcomeAllowed, d.Outcome)

	d = ctrl.Admit(context.Background(), admission.Request{
		Caller: identity.User("pro-1"),
		Prompt: "p",
		Mode:   "artistic",
	})
	assert.Equal(t, admission.OutcomeAllowed, d.Outcome)
}

func TestAdmitUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: &upstream.Error{Status: 502, Message: "bad gateway"}}
	ctrl := newController(t, gen, testConfig())

	d := ctrl.Admit(context.Background(), admission.Request{Caller: identity.User("u-1"), Prompt: "p"})

	assert.Equal(t, admission.OutcomeUpstreamFailure, d.Outcome)
	var ue *upstream.Error
	require.ErrorAs(t, d.Err, &ue)
	assert.Equal(t, 502, ue.Status)
}

func TestAdmitQuotaNotRefundedOnUpstreamFailure(t *testing.T) {
	gen := &fakeGenerator{err: &upstream.Error{Status: 404, Message: "model not found"}}
	ctrl := newController(t, gen, testConfig())

	caller := identity.User("u-1")
	ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})

	status := ctrl.QuotaStatus(context.Background(), caller)
	remaining, ok := status.Remaining.Get()
	require.True(t, ok)
	assert.Equal(t, quota.DefaultUserDaily-1, remaining)
}

func TestAdmitCircuitOpen(t *testing.T) {
	gen := &fakeGenerator{err: &upstream.Error{Status: 503, Message: "overloaded"}}
	ctrl := newController(t, gen, testConfig())

	caller := identity.User("u-1")
	for range breaker.DefaultFailureThreshold {
		d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
		require.Equal(t, admission.OutcomeUpstreamFailure, d.Outcome)
	}

	d := ctrl.Admit(context.Background(), admission.Request{Caller: caller, Prompt: "p"})
	assert.Equal(t, admission.OutcomeCircuitOpen, d.Outcome)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.Equal(t, breaker.DefaultFailureThreshold, gen.calls)
}

func TestThrottleFailsOpenOnStoreError(t *testing.T) {
	cfg := testConfig()
	runtime := config.NewRuntime(cfg)
	log := zerolog.Nop()

	accountant := quota.NewAccountant(
		errorStore{},
		quota.NewStaticResolver(nil),
		func() quota.Config { return cfg.Quota },
		log,
	)

	ctrl := admission.NewController(
		ratelimit.New(errorStore{}),
		accountant,
		breaker.NewRegistry(cfg.Breaker, log),
		&fakeGenerator{result: upstream.Result{Caption: "ok"}},
		runtime,
		log,
	)

	result := ctrl.Throttle(context.Background(), ratelimit.ScopeGenerate, identity.User("u-1"))
	assert.True(t, result.Allowed)

	// Full pipeline still admits with every store call failing.
	d := ctrl.Admit(context.Background(), admission.Request{Caller: identity.User("u-1"), Prompt: "p"})
	assert.Equal(t, admission.OutcomeAllowed, d.Outcome)
}

func TestThrottleScopesIndependent(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.Feedback = config.RouteLimit{Requests: 1, WindowMS: 60000}
	cfg.Limits.Events = config.RouteLimit{Requests: 1, WindowMS: 60000}

	ctrl := newController(t, &fakeGenerator{}, cfg)
	caller := identity.User("u-1")

	r := ctrl.Throttle(context.Background(), ratelimit.ScopeFeedback, caller)
	require.True(t, r.Allowed)
	r = ctrl.Throttle(context.Background(), ratelimit.ScopeFeedback, caller)
	assert.False(t, r.Allowed)

	r = ctrl.Throttle(context.Background(), ratelimit.ScopeEvents, caller)
	assert.True(t, r.Allowed, "feedback exhaustion must not affect events")
}

func TestAdmitContextPropagated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{err: ctx.Err()}
	ctrl := newController(t, gen, testConfig())

	d := ctrl.Admit(ctx, admission.Request{Caller: identity.User("u-1"), Prompt: "p"})
	assert.Equal(t, admission.OutcomeUpstreamFailure, d.Outcome)
	assert.True(t, errors.Is(d.Err, context.Canceled))
}
