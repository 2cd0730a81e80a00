package counter

import "time"

// Default Redis client timeouts.
const (
	defaultDialTimeoutMS = 2000
	defaultOpTimeoutMS   = 1000
)

// Config selects and tunes the counter store backend.
// An empty Addr means no shared backend is configured and the store runs
// purely in-process (local mode).
type Config struct {
	// Addr is the Redis address (host:port). Empty disables the shared
	// backend entirely.
	Addr string `yaml:"addr" toml:"addr"`

	// Password is the optional Redis password.
	Password string `yaml:"password" toml:"password"`

	// DB is the Redis database index.
	DB int `yaml:"db" toml:"db"`

	// DialTimeoutMS bounds connection establishment. Default: 2000.
	DialTimeoutMS int `yaml:"dial_timeout_ms" toml:"dial_timeout_ms"`

	// OpTimeoutMS bounds individual read/write commands. Default: 1000.
	// Kept short so a struggling backend trips the failover breaker
	// instead of stalling the request path.
	OpTimeoutMS int `yaml:"op_timeout_ms" toml:"op_timeout_ms"`
}

// GetDialTimeout returns the dial timeout with default fallback.
func (c *Config) GetDialTimeout() time.Duration {
	if c.DialTimeoutMS <= 0 {
		return defaultDialTimeoutMS * time.Millisecond
	}
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// GetOpTimeout returns the per-command timeout with default fallback.
func (c *Config) GetOpTimeout() time.Duration {
	if c.OpTimeoutMS <= 0 {
		return defaultOpTimeoutMS * time.Millisecond
	}
	return time.Duration(c.OpTimeoutMS) * time.Millisecond
}
