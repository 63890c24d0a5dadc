// Package report summarizes a finished (or interrupted) crawl from its
// durable stores: unique page count, longest page, most frequent tokens, and
// per-subdomain page counts. Pure read-side aggregation.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/store"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

// TopTokenCount is how many of the most frequent tokens the report lists.
const TopTokenCount = 50

// Summary holds the aggregated crawl results.
type Summary struct {
	UniquePages  int
	LongestURL   string
	LongestWords int
	TopTokens    []TokenCount
	Subdomains   []SubdomainCount
}

// TokenCount pairs a token with its corpus-wide frequency.
type TokenCount struct {
	Token string
	Count int
}

// SubdomainCount pairs a hostname with its number of distinct paths.
type SubdomainCount struct {
	Host  string
	Pages int
}

// Generator reads the crawl stores and produces a Summary.
type Generator struct {
	store  *store.Store
	logger *zap.Logger
}

func New(st *store.Store, logger *zap.Logger) *Generator {
	return &Generator{store: st, logger: logger}
}

// Summarize aggregates all stores into a Summary.
func (g *Generator) Summarize(ctx context.Context) (*Summary, error) {
	frontierURLs, err := g.loadFrontierURLs(ctx)
	if err != nil {
		return nil, err
	}
	skipped, err := g.loadSkipped(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	summary.UniquePages = countUniquePages(frontierURLs, skipped)
	summary.Subdomains = countSubdomains(frontierURLs)

	if summary.LongestURL, summary.LongestWords, err = g.loadMax(ctx); err != nil {
		return nil, err
	}
	if summary.TopTokens, err = g.loadTopTokens(ctx); err != nil {
		return nil, err
	}

	g.logger.Info("Crawl summarized",
		zap.Int("unique_pages", summary.UniquePages),
		zap.Int("subdomains", len(summary.Subdomains)),
		zap.Int("skipped", len(skipped)),
	)
	return summary, nil
}

// Write renders the summary as the plain-text answer file.
func (s *Summary) Write(w io.Writer) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("Question 1: \n")
	p("     There are %d unique pages.\n", s.UniquePages)
	p("Question 2: \n")
	p("     Longest page url is %s with %d words.\n", s.LongestURL, s.LongestWords)
	p("Question 3: \n")
	for _, tc := range s.TopTokens {
		p("     %s -> %d\n", tc.Token, tc.Count)
	}
	p("Question 4: \n")
	for _, sc := range s.Subdomains {
		p("     %s, %d\n", sc.Host, sc.Pages)
	}
	return err
}

func (g *Generator) loadFrontierURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := g.store.Bucket(store.BucketFrontier).ForEach(ctx, func(key, value string) error {
		var e struct {
			URL       string `json:"url"`
			Completed bool   `json:"completed"`
		}
		if uerr := json.Unmarshal([]byte(value), &e); uerr != nil {
			return fmt.Errorf("decode frontier entry %s: %w", key, uerr)
		}
		urls = append(urls, e.URL)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read frontier: %w", err)
	}
	return urls, nil
}

func (g *Generator) loadSkipped(ctx context.Context) (map[string]struct{}, error) {
	skipped := make(map[string]struct{})
	err := g.store.Bucket(store.BucketSkips).ForEach(ctx, func(key, value string) error {
		skipped[value] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read skip set: %w", err)
	}
	return skipped, nil
}

func (g *Generator) loadMax(ctx context.Context) (string, int, error) {
	bucket := g.store.Bucket(store.BucketMaxRecord)
	maxURL, _, err := bucket.Get(ctx, "url")
	if err != nil {
		return "", 0, fmt.Errorf("read max record: %w", err)
	}
	raw, ok, err := bucket.Get(ctx, "max_words")
	if err != nil {
		return "", 0, fmt.Errorf("read max record: %w", err)
	}
	if !ok {
		return maxURL, 0, nil
	}
	words, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, fmt.Errorf("decode max words %q: %w", raw, err)
	}
	return maxURL, words, nil
}

func (g *Generator) loadTopTokens(ctx context.Context) ([]TokenCount, error) {
	var tokens []TokenCount
	err := g.store.Bucket(store.BucketTokens).ForEach(ctx, func(key, value string) error {
		count, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("decode token count %q: %w", key, perr)
		}
		tokens = append(tokens, TokenCount{Token: key, Count: count})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read token counts: %w", err)
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Count != tokens[j].Count {
			return tokens[i].Count > tokens[j].Count
		}
		return tokens[i].Token < tokens[j].Token
	})
	if len(tokens) > TopTokenCount {
		tokens = tokens[:TopTokenCount]
	}
	return tokens, nil
}

// countUniquePages counts distinct normalized frontier URLs that were never
// skipped.
func countUniquePages(urls []string, skipped map[string]struct{}) int {
	unique := make(map[string]struct{})
	for _, raw := range urls {
		if _, wasSkipped := skipped[raw]; wasSkipped {
			continue
		}
		normalized, err := urlutil.Normalize(raw)
		if err != nil {
			continue
		}
		if _, wasSkipped := skipped[normalized]; wasSkipped {
			continue
		}
		unique[normalized] = struct{}{}
	}
	return len(unique)
}

// countSubdomains counts distinct paths per hostname, sorted by hostname.
func countSubdomains(urls []string) []SubdomainCount {
	paths := make(map[string]map[string]struct{})
	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			continue
		}
		host := parsed.Hostname()
		path := parsed.Path
		if path == "" {
			path = "/"
		}
		if paths[host] == nil {
			paths[host] = make(map[string]struct{})
		}
		paths[host][path] = struct{}{}
	}

	hosts := make([]string, 0, len(paths))
	for host := range paths {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	counts := make([]SubdomainCount, 0, len(hosts))
	for _, host := range hosts {
		counts = append(counts, SubdomainCount{Host: host, Pages: len(paths[host])})
	}
	return counts
}
