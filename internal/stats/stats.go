// Package stats owns the crawl-wide analytics state: token frequencies, the
// longest-page record, and the set of skipped URLs. It replaces what used to
// be free-floating global counters with one explicit context object owned by
// the worker pool.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/store"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

// Keys for the single-record longest-page bucket.
const (
	maxURLKey   = "url"
	maxWordsKey = "max_words"
)

// Analytics is safe for concurrent use by all workers. Each record family
// has its own lock; every read-compare-write happens under a single
// acquisition so concurrent updates cannot lose a higher value to a lower
// one.
type Analytics struct {
	logger *zap.Logger

	tokenMu sync.Mutex
	tokens  map[string]int
	tokenB  *store.Bucket

	maxMu    sync.Mutex
	maxURL   string
	maxWords int
	maxB     *store.Bucket

	skipMu sync.Mutex
	skips  map[string]string
	skipB  *store.Bucket
}

// New builds the Analytics context over its three buckets, reloading any
// persisted state.
func New(ctx context.Context, tokens, max, skips *store.Bucket, logger *zap.Logger) (*Analytics, error) {
	a := &Analytics{
		logger: logger,
		tokens: make(map[string]int),
		tokenB: tokens,
		maxB:   max,
		skips:  make(map[string]string),
		skipB:  skips,
	}

	err := tokens.ForEach(ctx, func(key, value string) error {
		n, perr := strconv.Atoi(value)
		if perr != nil {
			return fmt.Errorf("decode token count %q: %w", key, perr)
		}
		a.tokens[key] = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load token counts: %w", err)
	}

	if url, ok, gerr := max.Get(ctx, maxURLKey); gerr != nil {
		return nil, fmt.Errorf("load max record: %w", gerr)
	} else if ok {
		a.maxURL = url
	}
	if raw, ok, gerr := max.Get(ctx, maxWordsKey); gerr != nil {
		return nil, fmt.Errorf("load max record: %w", gerr)
	} else if ok {
		n, perr := strconv.Atoi(raw)
		if perr != nil {
			return nil, fmt.Errorf("decode max words %q: %w", raw, perr)
		}
		a.maxWords = n
	}

	err = skips.ForEach(ctx, func(key, value string) error {
		a.skips[key] = value
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load skip set: %w", err)
	}

	if len(a.tokens) > 0 || len(a.skips) > 0 || a.maxWords > 0 {
		logger.Info("Analytics resumed from store",
			zap.Int("tokens", len(a.tokens)),
			zap.Int("skipped", len(a.skips)),
			zap.Int("max_words", a.maxWords),
		)
	}
	return a, nil
}

// RecordTokens increments the frequency counter for each token. Counts are
// monotonically non-decreasing; the whole batch commits under one lock so
// concurrent increments to the same token cannot lose updates.
func (a *Analytics) RecordTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()

	touched := make(map[string]int)
	for _, token := range tokens {
		a.tokens[token]++
		touched[token] = a.tokens[token]
	}
	for token, count := range touched {
		if err := a.tokenB.Put(ctx, token, strconv.Itoa(count)); err != nil {
			return fmt.Errorf("persist token count: %w", err)
		}
	}
	return nil
}

// FoundNewMax updates the longest-page record iff wordCount strictly exceeds
// the stored maximum, returning whether it did.
func (a *Analytics) FoundNewMax(ctx context.Context, url string, wordCount int) (bool, error) {
	if wordCount <= 0 {
		return false, nil
	}

	a.maxMu.Lock()
	defer a.maxMu.Unlock()

	if wordCount <= a.maxWords {
		return false, nil
	}

	if err := a.maxB.Put(ctx, maxURLKey, url); err != nil {
		return false, fmt.Errorf("persist max url: %w", err)
	}
	if err := a.maxB.Put(ctx, maxWordsKey, strconv.Itoa(wordCount)); err != nil {
		return false, fmt.Errorf("persist max words: %w", err)
	}
	a.maxURL = url
	a.maxWords = wordCount

	a.logger.Info("New longest page",
		zap.String("url", url),
		zap.Int("words", wordCount),
	)
	return true, nil
}

// Max returns the current longest-page record.
func (a *Analytics) Max() (string, int) {
	a.maxMu.Lock()
	defer a.maxMu.Unlock()
	return a.maxURL, a.maxWords
}

// RecordSkip remembers that url was deliberately excluded from content
// processing. Recording the same URL twice keeps the first entry.
func (a *Analytics) RecordSkip(ctx context.Context, url string) error {
	normalized, err := urlutil.Normalize(url)
	if err != nil {
		return fmt.Errorf("record skip: %w", err)
	}
	hash := urlutil.Hash(normalized)

	a.skipMu.Lock()
	defer a.skipMu.Unlock()

	if _, exists := a.skips[hash]; exists {
		return nil
	}
	if err := a.skipB.Put(ctx, hash, normalized); err != nil {
		return fmt.Errorf("persist skip: %w", err)
	}
	a.skips[hash] = normalized

	a.logger.Debug("URL skipped",
		zap.String("url", normalized),
		zap.Int("total_skipped", len(a.skips)),
	)
	return nil
}

// SkippedCount returns the number of distinct skipped URLs.
func (a *Analytics) SkippedCount() int {
	a.skipMu.Lock()
	defer a.skipMu.Unlock()
	return len(a.skips)
}

// TokenCount returns the current frequency for token, mainly for tests and
// the stats endpoint.
func (a *Analytics) TokenCount(token string) int {
	a.tokenMu.Lock()
	defer a.tokenMu.Unlock()
	return a.tokens[token]
}
