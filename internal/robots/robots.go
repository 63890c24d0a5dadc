// Package robots fetches, parses, caches, and persists per-host robots.txt
// policy, answering fetch-permission, crawl-delay, and sitemap queries.
package robots

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/crawler"
	"github.com/campuscrawl/campuscrawl/internal/metrics"
	"github.com/campuscrawl/campuscrawl/internal/store"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

const maxRobotsBody = 1 << 20

// persistedRecord is the durable form of one host's robots state. A record
// with OK=false is the "no robots.txt" sentinel: fully permitted, delay 0.
type persistedRecord struct {
	OK     bool   `json:"ok"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
}

// record is the in-memory robots state for one host. data is nil for the
// no-policy sentinel.
type record struct {
	data *robotstxt.RobotsData
}

// Authority resolves and caches robots.txt per host. The check-and-populate
// sequence runs under one lock so each host is fetched at most once per run,
// and records persist so a resumed crawl skips hosts already resolved.
type Authority struct {
	mu sync.Mutex

	client    *http.Client
	userAgent string
	logger    *zap.Logger
	bucket    *store.Bucket

	records map[string]*record
}

// New builds an Authority, reloading any persisted robots records.
func New(ctx context.Context, bucket *store.Bucket, userAgent string, timeout time.Duration, logger *zap.Logger) (*Authority, error) {
	a := &Authority{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
		bucket:    bucket,
		records:   make(map[string]*record),
	}

	err := bucket.ForEach(ctx, func(key, value string) error {
		var p persistedRecord
		if uerr := json.Unmarshal([]byte(value), &p); uerr != nil {
			return fmt.Errorf("decode robots record %s: %w", key, uerr)
		}
		rec := &record{}
		if p.OK {
			data, derr := robotstxt.FromStatusAndBytes(p.Status, []byte(p.Body))
			if derr != nil {
				// Unparseable persisted policy degrades to the sentinel.
				logger.Warn("Dropping unparseable persisted robots record", zap.String("key", key), zap.Error(derr))
			} else {
				rec.data = data
			}
		}
		a.records[key] = rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load robots records: %w", err)
	}

	if len(a.records) > 0 {
		logger.Info("Robots cache resumed from store", zap.Int("hosts", len(a.records)))
	}
	return a, nil
}

// CanFetch reports whether the configured user agent may fetch url. Hosts
// without a usable robots.txt default to permitted.
func (a *Authority) CanFetch(ctx context.Context, rawURL string) bool {
	rec := a.resolve(ctx, rawURL)
	if rec == nil || rec.data == nil {
		return true
	}
	group := rec.data.FindGroup(a.userAgent)
	if group == nil {
		return true
	}
	parsedPath := pathOf(rawURL)
	return group.Test(parsedPath)
}

// CrawlDelay returns the host's declared crawl delay, or 0 when absent.
func (a *Authority) CrawlDelay(ctx context.Context, rawURL string) time.Duration {
	rec := a.resolve(ctx, rawURL)
	if rec == nil || rec.data == nil {
		return 0
	}
	group := rec.data.FindGroup(a.userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}

// Sitemaps returns the sitemap URLs declared by the host's robots.txt.
func (a *Authority) Sitemaps(ctx context.Context, rawURL string) []string {
	rec := a.resolve(ctx, rawURL)
	if rec == nil || rec.data == nil {
		return nil
	}
	return rec.data.Sitemaps
}

// ParseSitemap extracts every <loc> entry when the response URL names an XML
// sitemap, and returns nil otherwise. Malformed XML yields zero links, not an
// error.
func (a *Authority) ParseSitemap(resp *crawler.Response) []string {
	if resp == nil || !urlutil.IsXML(resp.URL) || !resp.Usable() {
		return nil
	}

	doc, err := xmlquery.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		a.logger.Warn("Failed to parse sitemap XML", zap.String("url", resp.URL), zap.Error(err))
		return nil
	}

	nodes := xmlquery.Find(doc, "//loc")
	urls := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if text := node.InnerText(); text != "" {
			urls = append(urls, text)
		}
	}
	a.logger.Debug("Parsed sitemap", zap.String("url", resp.URL), zap.Int("locations", len(urls)))
	return urls
}

// resolve returns the robots record for url's host, fetching and persisting
// it first if this is the first query for that host. The whole
// check-fetch-populate sequence is one critical section.
func (a *Authority) resolve(ctx context.Context, rawURL string) *record {
	base, err := urlutil.Base(rawURL)
	if err != nil {
		return nil
	}
	key := urlutil.Hash(base)

	a.mu.Lock()
	defer a.mu.Unlock()

	if rec, exists := a.records[key]; exists {
		return rec
	}

	rec, persisted := a.fetchLocked(ctx, base)
	a.records[key] = rec

	raw, merr := json.Marshal(persisted)
	if merr != nil {
		a.logger.Error("Failed to encode robots record", zap.String("base", base), zap.Error(merr))
		return rec
	}
	if perr := a.bucket.Put(ctx, key, string(raw)); perr != nil {
		a.logger.Error("Failed to persist robots record", zap.String("base", base), zap.Error(perr))
	}
	return rec
}

// fetchLocked downloads and parses base's robots.txt. Any failure is not a
// crawl error: the host is recorded as having no policy. Caller holds a.mu.
func (a *Authority) fetchLocked(ctx context.Context, base string) (*record, persistedRecord) {
	robotsURL := base + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		a.logger.Warn("Failed to build robots request", zap.String("url", robotsURL), zap.Error(err))
		metrics.ObserveRobotsFetch("failed")
		return &record{}, persistedRecord{OK: false}
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("Failed to download robots.txt; treating host as unrestricted",
			zap.String("url", robotsURL), zap.Error(err))
		metrics.ObserveRobotsFetch("failed")
		return &record{}, persistedRecord{OK: false}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			a.logger.Debug("Failed to close robots response body", zap.Error(cerr))
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		a.logger.Warn("Failed to read robots.txt body", zap.String("url", robotsURL), zap.Error(err))
		metrics.ObserveRobotsFetch("failed")
		return &record{}, persistedRecord{OK: false}
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		a.logger.Warn("Failed to parse robots.txt", zap.String("url", robotsURL), zap.Error(err))
		metrics.ObserveRobotsFetch("failed")
		return &record{}, persistedRecord{OK: false}
	}

	a.logger.Info("Downloaded robots.txt",
		zap.String("url", robotsURL),
		zap.Int("status", resp.StatusCode),
	)
	metrics.ObserveRobotsFetch("ok")
	return &record{data: data}, persistedRecord{OK: true, Status: resp.StatusCode, Body: string(body)}
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
