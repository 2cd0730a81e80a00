package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
//  1. Config (no dependencies)
//  2. Logger (depends on Config)
//  3. Store (depends on Config, Logger)
//  4. TierResolver (depends on Config)
//  5. Quota (depends on Config, Store, TierResolver, Logger)
//  6. Limiter (depends on Store)
//  7. Breakers (depends on Config, Logger)
//  8. Upstream (depends on Config, Logger)
//  9. Admission (depends on all of the above)
//  10. Handler (depends on Admission, Breakers, Store, Config)
//  11. Server (depends on Handler, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewStore)
	do.Provide(i, NewTierResolver)
	do.Provide(i, NewQuota)
	do.Provide(i, NewLimiter)
	do.Provide(i, NewBreakers)
	do.Provide(i, NewUpstream)
	do.Provide(i, NewAdmission)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
