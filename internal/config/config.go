// Package config provides configuration loading, parsing, and hot-reload
// for capgate.
package config

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/capgate/capgate/internal/breaker"
	"github.com/capgate/capgate/internal/counter"
	"github.com/capgate/capgate/internal/quota"
	"github.com/capgate/capgate/internal/upstream"
)

// RuntimeConfig is the interface components use to observe configuration
// that supports hot-reload. Holding a direct *Config pointer would go stale
// after a reload; calling Get per request observes the latest policy.
type RuntimeConfig interface {
	Get() *Config
}

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Config represents the complete capgate configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server" toml:"server"`
	Logging  LoggingConfig   `yaml:"logging" toml:"logging"`
	Counter  counter.Config  `yaml:"counter" toml:"counter"`
	Limits   LimitsConfig    `yaml:"limits" toml:"limits"`
	Quota    quota.Config    `yaml:"quota" toml:"quota"`
	Breaker  breaker.Config  `yaml:"breaker" toml:"breaker"`
	Upstream upstream.Config `yaml:"upstream" toml:"upstream"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	// Listen is the bind address, e.g. 127.0.0.1:8080.
	Listen string `yaml:"listen" toml:"listen"`

	// EnableHTTP2 turns on HTTP/2 cleartext (h2c) for non-TLS listeners.
	EnableHTTP2 bool `yaml:"enable_http2" toml:"enable_http2"`

	// MaxBodyBytes caps inbound request bodies. Default: 4 MB, sized for
	// base64 image payloads.
	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// DefaultMaxBodyBytes caps request bodies when unconfigured.
const DefaultMaxBodyBytes int64 = 4 << 20

// GetMaxBodyBytes returns the body cap with default fallback.
func (s *ServerConfig) GetMaxBodyBytes() int64 {
	if s.MaxBodyBytes <= 0 {
		return DefaultMaxBodyBytes
	}
	return s.MaxBodyBytes
}

// LoggingConfig defines logger behavior.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level" toml:"level"`

	// Format is json, console, or pretty. Default: auto-detect terminal.
	Format string `yaml:"format" toml:"format"`

	// Output is stdout, stderr, or a file path. Default: stdout.
	Output string `yaml:"output" toml:"output"`

	// Pretty forces console formatting regardless of terminal detection.
	Pretty bool `yaml:"pretty" toml:"pretty"`
}

// ParseLevel converts the configured level to a zerolog level.
// Unknown values fall back to info.
func (l *LoggingConfig) ParseLevel() zerolog.Level {
	switch l.Level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// RouteLimit is a fixed-window rate limit for one route scope.
type RouteLimit struct {
	// Requests is the number of requests admitted per window.
	Requests int `yaml:"requests" toml:"requests"`

	// WindowMS is the window length in milliseconds.
	WindowMS int `yaml:"window_ms" toml:"window_ms"`
}

// GetWindow returns the window as a duration, defaulting to one minute.
func (r *RouteLimit) GetWindow() time.Duration {
	if r.WindowMS <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowMS) * time.Millisecond
}

// GetRequests returns the request limit with fallback.
func (r *RouteLimit) GetRequests(fallback int) int {
	if r.Requests <= 0 {
		return fallback
	}
	return r.Requests
}

// Default per-route request limits (per one-minute window).
const (
	DefaultGenerateLimit = 10
	DefaultFeedbackLimit = 5
	DefaultEventsLimit   = 30
)

// LimitsConfig holds the per-route rate limit windows.
type LimitsConfig struct {
	Generate RouteLimit `yaml:"generate" toml:"generate"`
	Feedback RouteLimit `yaml:"feedback" toml:"feedback"`
	Events   RouteLimit `yaml:"events" toml:"events"`
}
