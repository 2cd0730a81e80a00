package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/capgate/capgate/internal/di"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the capgate server",
	Long: `Start the gateway server that admits caption-generation requests,
enforcing rate limits, daily quotas, and upstream circuit breaking.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	container, err := di.NewContainer(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to create container")
		return err
	}

	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	loggerSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize logger")
		return err
	}
	log.Logger = *loggerSvc.Logger
	zerolog.DefaultContextLogger = loggerSvc.Logger

	serverSvc, err := di.Invoke[*di.ServerService](container)
	if err != nil {
		log.Error().Err(err).Msg("failed to build server")
		return err
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	cfgSvc.StartWatching(watchCtx)

	// Graceful shutdown on SIGINT/SIGTERM
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")
		cancelWatch()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := container.ShutdownWithContext(ctx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}

		close(done)
	}()

	log.Info().Str("listen", cfgSvc.Get().Server.Listen).Msg("starting capgate")

	if err := serverSvc.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}

// findConfigFile searches for capgate.yaml in default locations.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "capgate", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return defaultConfigFile
}
