// Package cmd is the storefront command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Offline-first storefront node",
	Long: `storefront serves the local shop API from a cached catalog, keeps the
cart on disk, and queues orders while the authority is unreachable. Queued
orders are pushed in order once connectivity returns.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to storefront.yaml")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return newApp(cfg), nil
}
