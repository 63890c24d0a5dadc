package crawler

import (
	"context"
	"time"
)

// Frontier is the durable, deduplicated work queue of URLs to crawl.
type Frontier interface {
	// Add normalizes url and inserts a pending entry unless one already
	// exists in any completion state.
	Add(ctx context.Context, url string) error

	// Next returns one pending URL, selecting fairly across hosts. The
	// second result is false when no pending entry exists right now; callers
	// poll again later since in-flight workers may still discover URLs.
	Next(ctx context.Context) (string, bool)

	// MarkComplete flips the entry for url to completed. Idempotent;
	// unknown URLs are a no-op.
	MarkComplete(ctx context.Context, url string) error

	// Pending returns the number of uncompleted entries.
	Pending() int
}

// Robots answers fetch-permission, crawl-delay, and sitemap queries, fetching
// and caching each host's robots.txt at most once per run.
type Robots interface {
	CanFetch(ctx context.Context, url string) bool
	CrawlDelay(ctx context.Context, url string) time.Duration
	Sitemaps(ctx context.Context, url string) []string

	// ParseSitemap extracts location entries when the response is an XML
	// sitemap, and returns nil otherwise.
	ParseSitemap(resp *Response) []string
}

// Politeness enforces a minimum interval between request starts per host.
type Politeness interface {
	// Wait blocks the calling worker until the host's cooldown has elapsed
	// and records a new last-request time before returning.
	Wait(ctx context.Context, url string) error
}

// Deduper decides whether page content near-duplicates content already seen.
type Deduper interface {
	// CheckAndInsert fingerprints the token frequencies and compares against
	// every stored fingerprint. If no stored fingerprint is similar enough,
	// the new one is stored under url and false is returned. The
	// compare-then-insert sequence is atomic across workers.
	CheckAndInsert(ctx context.Context, url string, frequencies map[string]int) (bool, error)
}

// Fetcher performs the network I/O for a URL.
type Fetcher interface {
	// Fetch performs a GET and returns the response.
	Fetch(ctx context.Context, url string) (*Response, error)

	// Probe performs a lightweight HEAD-style pre-check.
	Probe(ctx context.Context, url string) (*Response, error)
}

// LinkExtractor turns a fetched page into outbound candidate URLs and applies
// the domain-specific validity filter.
type LinkExtractor interface {
	ExtractLinks(pageURL string, resp *Response) []string
	IsValidLink(ctx context.Context, url string) bool
}

// Tokenizer extracts content tokens from a response.
type Tokenizer interface {
	// Tokenize returns the page's tokens with stop words removed.
	Tokenize(resp *Response) []string

	// WordCount returns the page's total word count, stop words included.
	WordCount(resp *Response) int
}

// Analytics owns the crawl-wide statistics: token frequencies, the
// longest-page record, and the skip set.
type Analytics interface {
	// RecordTokens increments the frequency counter for each token.
	RecordTokens(ctx context.Context, tokens []string) error

	// FoundNewMax updates the longest-page record iff wordCount strictly
	// exceeds the stored maximum, returning whether it did.
	FoundNewMax(ctx context.Context, url string, wordCount int) (bool, error)

	// RecordSkip remembers that url was deliberately excluded from content
	// processing.
	RecordSkip(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
