package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/api"
	"github.com/campuscrawl/campuscrawl/internal/clock/system"
	"github.com/campuscrawl/campuscrawl/internal/config"
	"github.com/campuscrawl/campuscrawl/internal/fetch"
	"github.com/campuscrawl/campuscrawl/internal/frontier"
	"github.com/campuscrawl/campuscrawl/internal/id/uuid"
	"github.com/campuscrawl/campuscrawl/internal/politeness"
	"github.com/campuscrawl/campuscrawl/internal/progress"
	"github.com/campuscrawl/campuscrawl/internal/progress/sinks"
	"github.com/campuscrawl/campuscrawl/internal/robots"
	"github.com/campuscrawl/campuscrawl/internal/scraper"
	"github.com/campuscrawl/campuscrawl/internal/simhash"
	"github.com/campuscrawl/campuscrawl/internal/stats"
	"github.com/campuscrawl/campuscrawl/internal/store"
	"github.com/campuscrawl/campuscrawl/internal/tokenizer"
	"github.com/campuscrawl/campuscrawl/internal/worker"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Starts the crawler",
		Long: `Starts a concurrent crawl from the configured seed URLs, or resumes
the previous crawl if persisted state exists and --restart is not given.
The crawl runs until interrupted; state is flushed on shutdown so the next
run continues where this one stopped.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadEnvironment()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	runID, err := uuid.NewGenerator().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := store.DefaultOptions()
	opts.Reset = restart
	st, err := store.Open(cfg.Store.Dir, opts)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		syncCtx := context.Background()
		if serr := st.Sync(syncCtx); serr != nil {
			logger.Warn("Store sync on shutdown failed", zap.Error(serr))
		}
		if cerr := st.Close(); cerr != nil {
			logger.Warn("Store close failed", zap.Error(cerr))
		}
	}()
	if restart {
		logger.Info("Persisted state discarded, starting from seed URLs")
	}

	comps, analytics, err := buildComponents(ctx, cfg, st, logger)
	if err != nil {
		return err
	}

	runSink, err := sinks.NewStoreSink(ctx, st.Bucket(store.BucketRuns))
	if err != nil {
		return fmt.Errorf("init run history sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		runSink,
		sinks.NewLogSink(logger.Named("progress")),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if herr := hub.Close(closeCtx); herr != nil {
			logger.Warn("Progress hub close failed", zap.Error(herr))
		}
	}()
	comps.Progress = hub

	for _, seed := range cfg.Crawler.SeedURLs {
		if aerr := comps.Frontier.Add(ctx, seed); aerr != nil {
			logger.Warn("Seed URL rejected", zap.String("url", seed), zap.Error(aerr))
		}
	}
	if comps.Frontier.Pending() == 0 {
		logger.Warn("Nothing to crawl: no pending URLs after seeding")
	}

	if cfg.Server.Enabled {
		srv := api.NewServer(cfg, runID, comps.Frontier, analytics, system.New(), logger)
		go func() {
			if serr := srv.Serve(ctx); serr != nil {
				logger.Error("Ops server failed", zap.Error(serr))
			}
		}()
		logger.Info("Ops server listening", zap.Int("port", cfg.Server.Port))
	}

	pool, err := worker.NewPool(cfg, runID, comps, logger)
	if err != nil {
		return fmt.Errorf("build worker pool: %w", err)
	}

	logger.Info("Crawl starting",
		zap.Int("workers", cfg.Crawler.Workers),
		zap.Int("pending", comps.Frontier.Pending()),
		zap.Strings("allowed_domains", cfg.Crawler.AllowedDomains),
	)
	hub.Emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunStart})
	pool.Run(ctx)
	hub.Emit(progress.Event{RunID: runID, TS: time.Now().UTC(), Stage: progress.StageRunDone})

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("Crawl stopped", zap.Int("pending", comps.Frontier.Pending()))
	return nil
}

// buildComponents assembles the shared crawl components over the store. Any
// failure here is fatal: the crawler cannot run with partial state.
func buildComponents(
	ctx context.Context,
	cfg config.Config,
	st *store.Store,
	logger *zap.Logger,
) (worker.Components, *stats.Analytics, error) {
	fr, err := frontier.New(ctx, st.Bucket(store.BucketFrontier), logger.Named("frontier"))
	if err != nil {
		return worker.Components{}, nil, fmt.Errorf("init frontier: %w", err)
	}

	authority, err := robots.New(ctx, st.Bucket(store.BucketRobots), cfg.Crawler.UserAgent, cfg.FetchTimeout(), logger.Named("robots"))
	if err != nil {
		return worker.Components{}, nil, fmt.Errorf("init robots authority: %w", err)
	}

	detector, err := simhash.New(ctx, st.Bucket(store.BucketSimhash), cfg.Crawler.SimilarityThreshold, logger.Named("simhash"))
	if err != nil {
		return worker.Components{}, nil, fmt.Errorf("init duplicate detector: %w", err)
	}

	analytics, err := stats.New(ctx,
		st.Bucket(store.BucketTokens),
		st.Bucket(store.BucketMaxRecord),
		st.Bucket(store.BucketSkips),
		logger.Named("stats"),
	)
	if err != nil {
		return worker.Components{}, nil, fmt.Errorf("init analytics: %w", err)
	}

	fetcher, err := fetch.New(cfg, logger.Named("fetch"))
	if err != nil {
		return worker.Components{}, nil, fmt.Errorf("init fetcher: %w", err)
	}

	comps := worker.Components{
		Frontier:   fr,
		Politeness: politeness.New(authority, cfg.DefaultDelay()),
		Robots:     authority,
		Fetcher:    fetcher,
		Deduper:    detector,
		Extractor:  scraper.New(authority, cfg.Crawler.AllowedDomains, logger.Named("scraper")),
		Tokenizer:  tokenizer.New(logger.Named("tokenizer")),
		Analytics:  analytics,
	}
	return comps, analytics, nil
}
