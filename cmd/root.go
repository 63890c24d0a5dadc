// Package cmd defines and implements the CLI commands for the campuscrawl
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
	"github.com/campuscrawl/campuscrawl/internal/logging"
)

var (
	cfgFile string
	restart bool
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campuscrawl",
		Short: "A polite, resumable web crawler for a fixed set of university domains.",
		Long: `campuscrawl walks an allow-listed set of university web domains,
honoring robots.txt and a per-host politeness delay, filtering near-duplicate
pages, and persisting all state so an interrupted crawl resumes where it
stopped. The report subcommand summarizes a crawl's stores into a plain-text
answer file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in settings)")
	cmd.PersistentFlags().BoolVar(&restart, "restart", false, "discard persisted crawl state and start from the seed URLs")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newReportCmd())

	return cmd
}

// loadEnvironment builds the config and logger every subcommand needs.
func loadEnvironment() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
