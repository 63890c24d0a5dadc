// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors are registered at import time so every component can observe
// unconditionally, whether it runs under the crawl command or a test.
var (
	crawlerPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_pages_total",
			Help: "Total number of frontier URLs completed, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	crawlerSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_skips_total",
			Help: "Total number of skipped URLs, labeled by reason.",
		},
		[]string{"reason"},
	)

	crawlerBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	crawlerFrontierPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_frontier_pending",
			Help: "Number of discovered URLs not yet completed.",
		},
	)

	crawlerPolitenessWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crawler_politeness_wait_seconds",
			Help:    "Histogram of per-host politeness wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	crawlerRobotsFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_robots_fetches_total",
			Help: "Total robots.txt fetches, labeled by result.",
		},
		[]string{"result"},
	)

	crawlerDuplicatePagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_duplicate_pages_total",
			Help: "Total pages rejected by the near-duplicate detector.",
		},
	)

	crawlerActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crawler_active_workers",
			Help: "Number of workers currently processing a URL.",
		},
	)
)

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records a completed frontier URL and any bytes fetched for it.
func ObservePage(site string, outcome string, bytesFetched int) {
	sanitized := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitized, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveSkip increments the skip counter for the given reason.
func ObserveSkip(reason string) {
	crawlerSkipsTotal.WithLabelValues(reason).Inc()
}

// SetFrontierPending records the current frontier backlog.
func SetFrontierPending(n int) {
	crawlerFrontierPending.Set(float64(n))
}

// ObservePolitenessWait records how long a worker waited for a host cooldown.
func ObservePolitenessWait(host string, duration time.Duration) {
	crawlerPolitenessWaitSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRobotsFetch records the result ("ok" or "failed") of a robots fetch.
func ObserveRobotsFetch(result string) {
	crawlerRobotsFetchesTotal.WithLabelValues(result).Inc()
}

// ObserveDuplicate increments the near-duplicate rejection counter.
func ObserveDuplicate() {
	crawlerDuplicatePagesTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlerActiveWorkers.Dec()
}
