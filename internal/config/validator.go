package config

import "strings"

// Validate checks the configuration for invalid values. All problems are
// collected and returned together.
func (c *Config) Validate() error {
	verr := &ValidationError{}

	c.validateServer(verr)
	c.validateLogging(verr)
	c.validateLimits(verr)
	c.validateQuota(verr)
	c.validateBreaker(verr)
	c.validateUpstream(verr)

	return verr.ToError()
}

func (c *Config) validateServer(verr *ValidationError) {
	if c.Server.Listen == "" {
		verr.Add("server.listen is required")
	}
	if c.Server.MaxBodyBytes < 0 {
		verr.Addf("server.max_body_bytes must not be negative, got %d", c.Server.MaxBodyBytes)
	}
}

func (c *Config) validateLogging(verr *ValidationError) {
	switch c.Logging.Level {
	case "", LevelDebug, LevelInfo, LevelWarn, LevelError:
	default:
		verr.Addf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "console", "pretty":
	default:
		verr.Addf("logging.format must be json, console, or pretty; got %q", c.Logging.Format)
	}
}

func (c *Config) validateLimits(verr *ValidationError) {
	for _, rl := range []struct {
		name  string
		limit RouteLimit
	}{
		{"generate", c.Limits.Generate},
		{"feedback", c.Limits.Feedback},
		{"events", c.Limits.Events},
	} {
		if rl.limit.Requests < 0 {
			verr.Addf("limits.%s.requests must not be negative, got %d", rl.name, rl.limit.Requests)
		}
		if rl.limit.WindowMS < 0 {
			verr.Addf("limits.%s.window_ms must not be negative, got %d", rl.name, rl.limit.WindowMS)
		}
	}
}

func (c *Config) validateQuota(verr *ValidationError) {
	if c.Quota.GuestDaily < 0 {
		verr.Addf("quota.guest_daily must not be negative, got %d", c.Quota.GuestDaily)
	}
	if c.Quota.UserDaily < 0 {
		verr.Addf("quota.user_daily must not be negative, got %d", c.Quota.UserDaily)
	}
	for _, u := range c.Quota.ProUsers {
		if strings.TrimSpace(u) == "" {
			verr.Add("quota.pro_users must not contain empty entries")
		}
	}
}

func (c *Config) validateBreaker(verr *ValidationError) {
	if c.Breaker.FailureThreshold < 0 {
		verr.Addf("breaker.failure_threshold must not be negative, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.OpenTimeoutMS < 0 {
		verr.Addf("breaker.open_timeout_ms must not be negative, got %d", c.Breaker.OpenTimeoutMS)
	}
	if c.Breaker.HalfOpenProbes < 0 {
		verr.Addf("breaker.half_open_probes must not be negative, got %d", c.Breaker.HalfOpenProbes)
	}
	for _, s := range c.Breaker.RetryableStatuses {
		if s < 100 || s > 599 {
			verr.Addf("breaker.retryable_statuses contains invalid status %d", s)
		}
	}
}

func (c *Config) validateUpstream(verr *ValidationError) {
	if c.Upstream.BaseURL == "" {
		verr.Add("upstream.base_url is required")
	}
	if c.Upstream.TimeoutMS < 0 {
		verr.Addf("upstream.timeout_ms must not be negative, got %d", c.Upstream.TimeoutMS)
	}
	if c.Upstream.RequestsPerSecond < 0 {
		verr.Addf("upstream.requests_per_second must not be negative, got %g", c.Upstream.RequestsPerSecond)
	}
}
