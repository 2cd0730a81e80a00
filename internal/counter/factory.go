package counter

import (
	"github.com/redis/go-redis/v9"
)

// New creates the counter store for the given configuration.
//
// With a Redis address configured, the result is a FailoverStore: Redis as
// the authoritative shared backend, the in-process map as the degraded-mode
// fallback. Without one, the in-process store is returned directly and a
// warning is logged, since limits are then enforced per-instance only.
func New(cfg Config) Store {
	log := logger().With().Str("component", "counter_factory").Logger()

	if cfg.Addr == "" {
		log.Warn().Msg("no shared counter backend configured, limits are per-instance only")
		return NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.GetDialTimeout(),
		ReadTimeout:  cfg.GetOpTimeout(),
		WriteTimeout: cfg.GetOpTimeout(),
	})

	log.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Dur("op_timeout", cfg.GetOpTimeout()).
		Msg("shared counter backend configured")

	return NewFailoverStore(NewRedisStore(client), NewMemoryStore())
}
