package upstream

import "time"

// Default client values. The request timeout sits just under the typical
// 30s edge timeout so the gateway answers before any proxy in front of it
// gives up.
const (
	DefaultTimeoutMS = 28000
	DefaultModel     = "caption-large"
)

// Config holds the upstream provider settings.
type Config struct {
	// BaseURL is the provider endpoint, e.g. https://api.example.com.
	BaseURL string `yaml:"base_url" toml:"base_url"`

	// APIKey authenticates the gateway to the provider.
	APIKey string `yaml:"api_key" toml:"api_key"`

	// Model names the generation model requested from the provider.
	// Default: caption-large
	Model string `yaml:"model" toml:"model"`

	// TimeoutMS bounds each generation call. A timed-out call counts as a
	// breaker failure. Default: 28000 (28 seconds)
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`

	// RequestsPerSecond smooths outbound traffic to the provider.
	// Zero disables smoothing.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// GetTimeout returns the request timeout with default fallback.
func (c *Config) GetTimeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return DefaultTimeoutMS * time.Millisecond
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// GetModel returns the model with default fallback.
func (c *Config) GetModel() string {
	if c.Model == "" {
		return DefaultModel
	}
	return c.Model
}
