// Package fetch retrieves pages over HTTP using a Colly collector. Robots
// enforcement and per-host pacing happen before a URL reaches this package,
// so the collector itself runs unthrottled.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
	"github.com/campuscrawl/campuscrawl/internal/crawler"
)

// Client implements the crawler.Fetcher interface using Colly.
type Client struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New constructs a configured Colly-based fetcher.
func New(cfg config.Config, logger *zap.Logger) (*Client, error) {
	base := colly.NewCollector(
		colly.UserAgent(cfg.Crawler.UserAgent),
	)
	// Robots rules are enforced upstream, against the policy store.
	base.IgnoreRobotsTxt = true
	// The frontier already deduplicates, and a probe and a download of the
	// same URL are two visits to the same collector lineage.
	base.AllowURLRevisit = true
	// One extra byte over the cap so oversize bodies are still detected as
	// oversize instead of silently truncated to the limit.
	base.MaxBodySize = int(cfg.MaxFileSizeBytes()) + 1
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   32,
		MaxConnsPerHost:       cfg.Crawler.Workers * 2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.FetchTimeout(),
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.FetchTimeout())

	return &Client{
		baseCollector: base,
		logger:        logger,
	}, nil
}

// Fetch downloads a page with a GET request.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*crawler.Response, error) {
	return c.do(ctx, rawURL, false)
}

// Probe issues a HEAD request so callers can inspect status and headers
// before committing to a download.
func (c *Client) Probe(ctx context.Context, rawURL string) (*crawler.Response, error) {
	return c.do(ctx, rawURL, true)
}

type fetchResult struct {
	resp *crawler.Response
	err  error
}

func (c *Client) do(ctx context.Context, rawURL string, head bool) (*crawler.Response, error) {
	collector := c.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{resp: toResponse(rawURL, r)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		// Colly routes non-2xx statuses here with the response attached.
		// Those are results, not transport failures: the pipeline decides
		// what a 404 or a redirect means.
		if r != nil && r.StatusCode > 0 {
			send(fetchResult{resp: toResponse(rawURL, r)})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	var err error
	if head {
		err = collector.Head(rawURL)
	} else {
		err = collector.Visit(rawURL)
	}
	if err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		return res.resp, res.err
	default:
		return nil, errors.New("colly fetch produced no result")
	}
}

func toResponse(rawURL string, r *colly.Response) *crawler.Response {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	finalURL := rawURL
	if r.Request != nil && r.Request.URL != nil {
		finalURL = r.Request.URL.String()
	}
	return &crawler.Response{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte{}, r.Body...),
	}
}
