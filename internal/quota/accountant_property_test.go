package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/identity"
	"github.com/capgate/capgate/internal/quota"
)

// Property-based tests for quota accounting under concurrency.

func TestAccountantProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	// Under N concurrent consumers, at most limit succeed, never a net
	// overshoot, regardless of interleaving.
	properties.Property("no overshoot under concurrent consume", prop.ForAll(
		func(limit, callers int) bool {
			cfg := quota.Config{GuestDaily: limit}
			acct := quota.NewAccountant(
				counter.NewMemoryStore(),
				quota.NewStaticResolver(nil),
				func() quota.Config { return cfg },
				zerolog.Nop(),
			)
			guest := identity.IP("198.51.100.7")

			var allowed int64
			var wg sync.WaitGroup
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					cons, err := acct.Consume(context.Background(), guest)
					if err == nil && cons.Allowed {
						atomic.AddInt64(&allowed, 1)
					}
				}()
			}
			wg.Wait()

			want := int64(limit)
			if int64(callers) < want {
				want = int64(callers)
			}
			return allowed == want
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 64),
	))

	// Guest and user buckets for the "same" raw ID never collide.
	properties.Property("tiers never share buckets", prop.ForAll(
		func(id string, burn int) bool {
			if id == "" {
				return true
			}
			cfg := quota.Config{GuestDaily: 1, UserDaily: 1}
			acct := quota.NewAccountant(
				counter.NewMemoryStore(),
				quota.NewStaticResolver(nil),
				func() quota.Config { return cfg },
				zerolog.Nop(),
			)
			ctx := context.Background()

			for i := 0; i < burn; i++ {
				if _, err := acct.Consume(ctx, identity.IP(id)); err != nil {
					return false
				}
			}

			cons, err := acct.Consume(ctx, identity.User(id))
			return err == nil && cons.Allowed
		},
		gen.AlphaString(),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
