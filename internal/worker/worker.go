// Package worker runs the crawl pipeline: a fixed pool of workers pulling
// URLs from the frontier, gating each through politeness, size, word-count,
// and duplicate checks, then feeding discovered links back in.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
	"github.com/campuscrawl/campuscrawl/internal/crawler"
	"github.com/campuscrawl/campuscrawl/internal/metrics"
	"github.com/campuscrawl/campuscrawl/internal/progress"
	"github.com/campuscrawl/campuscrawl/internal/tokenizer"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

// Components bundles the collaborators every worker shares. All of them are
// safe for concurrent use.
type Components struct {
	Frontier   crawler.Frontier
	Politeness crawler.Politeness
	Robots     crawler.Robots
	Fetcher    crawler.Fetcher
	Deduper    crawler.Deduper
	Extractor  crawler.LinkExtractor
	Tokenizer  crawler.Tokenizer
	Analytics  crawler.Analytics

	// Progress receives best-effort crawl progress events. Optional.
	Progress progress.Emitter
}

func (c Components) validate() error {
	switch {
	case c.Frontier == nil:
		return fmt.Errorf("worker pool: frontier is required")
	case c.Politeness == nil:
		return fmt.Errorf("worker pool: politeness gate is required")
	case c.Robots == nil:
		return fmt.Errorf("worker pool: robots authority is required")
	case c.Fetcher == nil:
		return fmt.Errorf("worker pool: fetcher is required")
	case c.Deduper == nil:
		return fmt.Errorf("worker pool: duplicate detector is required")
	case c.Extractor == nil:
		return fmt.Errorf("worker pool: link extractor is required")
	case c.Tokenizer == nil:
		return fmt.Errorf("worker pool: tokenizer is required")
	case c.Analytics == nil:
		return fmt.Errorf("worker pool: analytics is required")
	}
	return nil
}

// Pool drives cfg.Crawler.Workers concurrent pipeline loops.
type Pool struct {
	cfg    config.Config
	runID  string
	comps  Components
	logger *zap.Logger
}

// NewPool validates the component set and builds a Pool.
func NewPool(cfg config.Config, runID string, comps Components, logger *zap.Logger) (*Pool, error) {
	if err := comps.validate(); err != nil {
		return nil, err
	}
	return &Pool{cfg: cfg, runID: runID, comps: comps, logger: logger}, nil
}

// Run blocks until ctx is canceled. Workers have no self-termination: an
// empty frontier is polled, not treated as done, because in-flight peers may
// still discover URLs.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Crawler.Workers; i++ {
		w := &pipelineWorker{
			cfg:    p.cfg,
			runID:  p.runID,
			comps:  p.comps,
			logger: p.logger.With(zap.Int("worker", i)),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()
	p.logger.Info("Worker pool stopped")
}

type pipelineWorker struct {
	cfg    config.Config
	runID  string
	comps  Components
	logger *zap.Logger
}

func (w *pipelineWorker) run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		if ctx.Err() != nil {
			return
		}

		url, ok := w.comps.Frontier.Next(ctx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.EmptyPoll()):
			}
			continue
		}

		w.process(ctx, url)
	}
}

// process runs one URL through the pipeline. Every exit path marks the URL
// complete so it is never retried within or across runs.
func (w *pipelineWorker) process(ctx context.Context, url string) {
	log := w.logger.With(zap.String("url", url))
	site := metrics.SanitizeSite(url)

	if err := w.comps.Politeness.Wait(ctx, url); err != nil {
		// Only context cancellation reaches here; the URL stays pending for
		// the next run.
		return
	}

	probe, err := w.comps.Fetcher.Probe(ctx, url)
	if err != nil {
		log.Info("Skipping URL, probe failed", zap.Error(err))
		w.skip(ctx, url, crawler.SkipProbeFailed)
		return
	}
	maxBytes := w.cfg.MaxFileSizeBytes()
	if declared := probe.ContentLength(); declared > maxBytes {
		log.Info("Skipping URL, declared size exceeds ceiling",
			zap.Int64("content_length", declared),
			zap.Int64("max_bytes", maxBytes),
		)
		w.skip(ctx, url, crawler.SkipTooLarge)
		return
	}

	resp, err := w.comps.Fetcher.Fetch(ctx, url)
	if err != nil {
		log.Info("Skipping URL, fetch failed", zap.Error(err))
		w.skip(ctx, url, crawler.SkipEmptyPage)
		return
	}
	if !resp.Usable() {
		// Dead page, but a redirect response still names a successor worth
		// queueing before the skip.
		log.Info("Skipping URL, no usable body", zap.Int("status", resp.StatusCode))
		w.addOutboundLinks(ctx, url, resp, log)
		w.skip(ctx, url, crawler.SkipEmptyPage)
		return
	}
	if fetched := resp.ContentLength(); fetched > maxBytes || int64(len(resp.Body)) > maxBytes {
		log.Info("Skipping URL, fetched size exceeds ceiling",
			zap.Int("body_bytes", len(resp.Body)),
			zap.Int64("max_bytes", maxBytes),
		)
		w.skip(ctx, url, crawler.SkipTooLarge)
		return
	}

	// Sitemaps are machine indexes: the word floor and similarity checks
	// would reject every one of them, so XML URLs bypass those two gates.
	// They still count toward the longest-page record and token totals.
	isXML := urlutil.IsXML(url)

	words := w.comps.Tokenizer.WordCount(resp)
	if !isXML && words > 0 && words < w.cfg.Crawler.LowInformationWords {
		log.Info("Skipping URL, low information page",
			zap.Int("words", words),
			zap.Int("floor", w.cfg.Crawler.LowInformationWords),
		)
		w.skip(ctx, url, crawler.SkipLowInfo)
		return
	}

	tokens := w.comps.Tokenizer.Tokenize(resp)
	if !isXML {
		duplicate, derr := w.comps.Deduper.CheckAndInsert(ctx, url, tokenizer.Frequencies(tokens))
		if derr != nil {
			log.Error("Duplicate check failed", zap.Error(derr))
			w.skip(ctx, url, crawler.SkipDuplicate)
			return
		}
		if duplicate {
			log.Info("Skipping URL, content too similar to a crawled page")
			w.skip(ctx, url, crawler.SkipDuplicate)
			return
		}
	}

	if newMax, merr := w.comps.Analytics.FoundNewMax(ctx, url, words); merr != nil {
		log.Error("Max-words update failed", zap.Error(merr))
	} else if newMax {
		log.Info("Found new longest page")
	}

	if err := w.comps.Analytics.RecordTokens(ctx, tokens); err != nil {
		log.Error("Token count update failed", zap.Error(err))
	}

	log.Info("Downloaded page",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
	)
	metrics.ObservePage(site, "success", len(resp.Body))
	if w.comps.Progress != nil {
		w.comps.Progress.Emit(progress.Event{
			RunID:       w.runID,
			TS:          time.Now().UTC(),
			Stage:       progress.StagePageDone,
			Site:        site,
			URL:         url,
			Bytes:       int64(len(resp.Body)),
			Words:       words,
			StatusClass: progress.ClassifyStatus(resp.StatusCode),
		})
	}

	w.addOutboundLinks(ctx, url, resp, log)

	if err := w.comps.Frontier.MarkComplete(ctx, url); err != nil {
		log.Error("Mark complete failed", zap.Error(err))
	}
}

// addOutboundLinks queues every valid successor of resp: sitemap entries when
// the response is a sitemap, otherwise extracted anchors plus any sitemaps
// the host's robots.txt declares.
func (w *pipelineWorker) addOutboundLinks(ctx context.Context, url string, resp *crawler.Response, log *zap.Logger) {
	var candidates []string
	if entries := w.comps.Robots.ParseSitemap(resp); len(entries) > 0 {
		candidates = entries
	} else {
		candidates = w.comps.Extractor.ExtractLinks(url, resp)
		candidates = append(candidates, w.comps.Robots.Sitemaps(ctx, url)...)
	}

	added := 0
	for _, link := range candidates {
		if !w.comps.Extractor.IsValidLink(ctx, link) {
			continue
		}
		if err := w.comps.Frontier.Add(ctx, link); err != nil {
			log.Error("Frontier add failed", zap.String("link", link), zap.Error(err))
			continue
		}
		added++
	}
	if added > 0 {
		log.Debug("Queued outbound links",
			zap.Int("candidates", len(candidates)),
			zap.Int("added", added),
		)
	}
}

// skip records the URL in the skip set and completes its frontier entry. The
// two actions always happen together: a URL that was skipped must never be
// retried.
func (w *pipelineWorker) skip(ctx context.Context, url string, reason crawler.SkipReason) {
	metrics.ObserveSkip(string(reason))
	if w.comps.Progress != nil {
		w.comps.Progress.Emit(progress.Event{
			RunID:  w.runID,
			TS:     time.Now().UTC(),
			Stage:  progress.StagePageSkipped,
			Site:   metrics.SanitizeSite(url),
			URL:    url,
			Reason: string(reason),
		})
	}
	if err := w.comps.Analytics.RecordSkip(ctx, url); err != nil {
		w.logger.Error("Record skip failed", zap.String("url", url), zap.Error(err))
	}
	if err := w.comps.Frontier.MarkComplete(ctx, url); err != nil {
		w.logger.Error("Mark complete failed", zap.String("url", url), zap.Error(err))
	}
}
