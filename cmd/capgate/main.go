// Package main is the entry point for capgate.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "capgate.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "capgate",
	Short: "Admission gateway for caption generation",
	Long: `capgate sits between web clients and the caption-generation provider,
enforcing per-caller rate limits, tiered daily quotas, and circuit breaking
so an expensive upstream is never overwhelmed by any single caller.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/capgate/"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
