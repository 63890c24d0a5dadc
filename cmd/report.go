package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/report"
	"github.com/campuscrawl/campuscrawl/internal/store"
)

// newReportCmd creates and configures the 'report' subcommand.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarizes a crawl's stores into the answer file",
		Long: `Reads the durable crawl stores and writes a plain-text summary:
unique page count, the longest page, the most frequent tokens, and
per-subdomain page counts. Safe to run against an interrupted crawl.`,
		RunE: runReportCommand,
	}
}

func runReportCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Read-only: never reset, never WAL-convert someone else's database.
	st, err := store.Open(cfg.Store.Dir, store.Options{})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("Store close failed", zap.Error(cerr))
		}
	}()

	summary, err := report.New(st, logger.Named("report")).Summarize(cmd.Context())
	if err != nil {
		return fmt.Errorf("summarize crawl: %w", err)
	}

	out, err := os.Create(cfg.Store.ReportPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			logger.Warn("Report file close failed", zap.Error(cerr))
		}
	}()

	if err := summary.Write(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info("Report written",
		zap.String("path", cfg.Store.ReportPath),
		zap.Int("unique_pages", summary.UniquePages),
	)
	return nil
}
