package config

import "sync/atomic"

// Runtime holds the live configuration behind an atomic pointer so hot
// reloads swap the whole config without locking readers.
type Runtime struct {
	current atomic.Pointer[Config]
}

// NewRuntime creates a Runtime seeded with the given configuration.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	r.current.Store(cfg)
	return r
}

// Get returns the current configuration snapshot.
func (r *Runtime) Get() *Config {
	return r.current.Load()
}

// Swap replaces the current configuration.
func (r *Runtime) Swap(cfg *Config) {
	r.current.Store(cfg)
}

var _ RuntimeConfig = (*Runtime)(nil)
