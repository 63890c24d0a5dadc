// Package politeness enforces a minimum interval between the starts of two
// requests to the same host, across all workers.
package politeness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
	"github.com/campuscrawl/campuscrawl/internal/metrics"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

// Gate serializes request starts per host via one token-bucket limiter per
// host with burst 1, so two workers racing on the same host cannot both
// observe an elapsed cooldown. Distinct hosts wait on distinct limiters and
// never block each other.
type Gate struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	robots       crawler.Robots
	defaultDelay time.Duration
}

// New builds a Gate. The effective interval for a host is the larger of the
// host's robots crawl delay and defaultDelay.
func New(robots crawler.Robots, defaultDelay time.Duration) *Gate {
	return &Gate{
		limiters:     make(map[string]*rate.Limiter),
		robots:       robots,
		defaultDelay: defaultDelay,
	}
}

// Wait blocks the calling worker until url's host cooldown has elapsed, then
// claims the next slot before returning.
func (g *Gate) Wait(ctx context.Context, rawURL string) error {
	host := urlutil.Host(rawURL)
	if host == "" {
		host = "unknown"
	}

	limiter := g.limiterFor(ctx, host, rawURL)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("politeness wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessWait(host, waited)
	}
	return nil
}

// limiterFor returns the host's limiter, creating it on first use with the
// interval fixed from the robots record. Records never expire within a run,
// so the creation-time delay stays correct.
func (g *Gate) limiterFor(ctx context.Context, host, rawURL string) *rate.Limiter {
	g.mu.Lock()
	if limiter, exists := g.limiters[host]; exists {
		g.mu.Unlock()
		return limiter
	}
	g.mu.Unlock()

	// Resolving the crawl delay may fetch robots.txt; keep that network
	// round-trip outside the limiter-map lock.
	delay := g.defaultDelay
	if g.robots != nil {
		if declared := g.robots.CrawlDelay(ctx, rawURL); declared > delay {
			delay = declared
		}
	}

	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if limiter, exists := g.limiters[host]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(limit, 1)
	g.limiters[host] = limiter
	return limiter
}
