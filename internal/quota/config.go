package quota

import "time"

// Default policy values.
const (
	DefaultGuestDaily     = 3
	DefaultUserDaily      = 20
	DefaultTierCacheTTLMS = 60000
)

// DefaultProModes are the generation modes reserved for the pro tier.
var DefaultProModes = []string{"detailed", "artistic"}

// Config holds the quota policy constants. Zero values fall back to the
// documented defaults; the pro tier is always unlimited and is not
// configurable here.
type Config struct {
	// GuestDaily is the daily allowance for unauthenticated callers.
	// Default: 3
	GuestDaily int `yaml:"guest_daily" toml:"guest_daily"`

	// UserDaily is the daily allowance for authenticated, non-pro users.
	// Default: 20
	UserDaily int `yaml:"user_daily" toml:"user_daily"`

	// ProUsers lists user IDs resolved to the pro tier by the built-in
	// static resolver. Ignored when an external resolver is wired in.
	ProUsers []string `yaml:"pro_users" toml:"pro_users"`

	// ProModes lists generation modes only the pro tier may request.
	// Default: detailed, artistic
	ProModes []string `yaml:"pro_modes" toml:"pro_modes"`

	// TierCacheTTLMS bounds how long a resolved tier is cached.
	// Default: 60000 (1 minute)
	TierCacheTTLMS int `yaml:"tier_cache_ttl_ms" toml:"tier_cache_ttl_ms"`
}

// GetGuestDaily returns the guest allowance with default fallback.
func (c *Config) GetGuestDaily() int {
	if c.GuestDaily <= 0 {
		return DefaultGuestDaily
	}
	return c.GuestDaily
}

// GetUserDaily returns the user allowance with default fallback.
func (c *Config) GetUserDaily() int {
	if c.UserDaily <= 0 {
		return DefaultUserDaily
	}
	return c.UserDaily
}

// GetProModes returns the pro-gated modes with default fallback.
func (c *Config) GetProModes() []string {
	if len(c.ProModes) == 0 {
		return DefaultProModes
	}
	return c.ProModes
}

// GetTierCacheTTL returns the tier cache TTL with default fallback.
func (c *Config) GetTierCacheTTL() time.Duration {
	if c.TierCacheTTLMS <= 0 {
		return DefaultTierCacheTTLMS * time.Millisecond
	}
	return time.Duration(c.TierCacheTTLMS) * time.Millisecond
}
