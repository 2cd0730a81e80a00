package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/capgate/capgate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check if the capgate server is running",
	Long: `Check the health status of a running capgate server by querying
its /health endpoint.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	healthURL := fmt.Sprintf("http://%s/health", cfg.Server.Listen)

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	//nolint:noctx // Simple health check doesn't need context propagation
	resp, err := client.Get(healthURL)
	if err != nil {
		fmt.Printf("✗ capgate is not running (%s)\n", cfg.Server.Listen)
		return fmt.Errorf("server not reachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("✓ capgate is running (%s)\n", cfg.Server.Listen)
		return nil
	}

	fmt.Printf("✗ capgate returned unexpected status: %d\n", resp.StatusCode)

	return fmt.Errorf("health check failed with status %d", resp.StatusCode)
}
