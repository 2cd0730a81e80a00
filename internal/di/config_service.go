package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/capgate/capgate/internal/config"
)

// ConfigService wraps the loaded configuration with hot-reload support.
// Reads go through the atomic Runtime pointer, so in-flight requests keep
// their config while new requests observe reloaded policy.
type ConfigService struct {
	runtime *config.Runtime
	watcher *config.Watcher
	path    string
}

// Get returns the current configuration (lock-free read).
func (c *ConfigService) Get() *config.Config {
	return c.runtime.Get()
}

// Path returns the config file path the service loaded from.
func (c *ConfigService) Path() string {
	return c.path
}

// StartWatching begins watching the config file for changes, swapping the
// runtime pointer on each successful reload. Call after the container is
// fully initialized; the context controls the watcher lifecycle.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(func(newCfg *config.Config) error {
		c.runtime.Swap(newCfg)
		log.Info().Str("path", c.path).Msg("config hot-reloaded")
		return nil
	})

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

var _ config.RuntimeConfig = (*ConfigService)(nil)

// NewConfig loads the configuration and creates a watcher. The watcher is
// created but not started; call StartWatching after container init.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	svc := &ConfigService{
		runtime: config.NewRuntime(cfg),
		path:    path,
	}

	// Hot-reload is optional: a watcher failure degrades, never errors.
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}
