// Package frontier maintains the durable, deduplicated set of discovered URLs
// and hands pending ones out to workers, selecting fairly across hosts.
package frontier

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/metrics"
	"github.com/campuscrawl/campuscrawl/internal/store"
	"github.com/campuscrawl/campuscrawl/internal/urlutil"
)

// Bloom filter sizing for the expected corpus; false positives only cost a
// map lookup, never a dropped URL.
const (
	bloomExpectedItems     = 1_000_000
	bloomFalsePositiveRate = 0.01
)

// entry is the persisted record for one discovered URL.
type entry struct {
	URL       string `json:"url"`
	Completed bool   `json:"completed"`
}

// Frontier is the single source of truth for to-be-downloaded vs completed
// state. All mutation happens under one mutex; the durable bucket mirrors the
// in-memory view.
type Frontier struct {
	mu sync.Mutex

	logger *zap.Logger
	bucket *store.Bucket

	// entries is the authoritative map, keyed by URL hash.
	entries map[string]entry

	// seen short-circuits existence checks for URLs never added before.
	seen *bloom.BloomFilter

	// Per-host pending queues, walked round-robin so one host's backlog
	// cannot starve the others.
	queues    map[string][]string
	hosts     []string
	hostIndex int

	pending int
}

// New builds a Frontier over the given bucket, reloading any persisted
// entries so a resumed crawl continues where the previous run stopped.
func New(ctx context.Context, bucket *store.Bucket, logger *zap.Logger) (*Frontier, error) {
	f := &Frontier{
		logger:  logger,
		bucket:  bucket,
		entries: make(map[string]entry),
		seen:    bloom.NewWithEstimates(bloomExpectedItems, bloomFalsePositiveRate),
		queues:  make(map[string][]string),
	}

	err := bucket.ForEach(ctx, func(key, value string) error {
		var e entry
		if uerr := json.Unmarshal([]byte(value), &e); uerr != nil {
			return fmt.Errorf("decode frontier entry %s: %w", key, uerr)
		}
		f.entries[key] = e
		f.seen.AddString(key)
		if !e.Completed {
			f.enqueueLocked(e.URL)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load frontier: %w", err)
	}

	if len(f.entries) > 0 {
		logger.Info("Frontier resumed from store",
			zap.Int("total", len(f.entries)),
			zap.Int("pending", f.pending),
		)
	}
	metrics.SetFrontierPending(f.pending)
	return f, nil
}

// Add inserts a pending entry for url unless its normalized form is already
// known, in any completion state.
func (f *Frontier) Add(ctx context.Context, rawURL string) error {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return fmt.Errorf("add url: %w", err)
	}
	hash := urlutil.Hash(normalized)

	f.mu.Lock()
	defer f.mu.Unlock()

	// A negative bloom test proves the hash was never added; a positive one
	// falls through to the authoritative map.
	if f.seen.TestString(hash) {
		if _, exists := f.entries[hash]; exists {
			return nil
		}
	}

	e := entry{URL: normalized, Completed: false}
	if err := f.persistLocked(ctx, hash, e); err != nil {
		return err
	}
	f.entries[hash] = e
	f.seen.AddString(hash)
	f.enqueueLocked(normalized)
	metrics.SetFrontierPending(f.pending)
	return nil
}

// Next returns one pending URL, rotating across hosts. The second result is
// false when nothing is pending; callers should poll again later rather than
// treat this as crawl termination.
func (f *Frontier) Next(_ context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for range f.hosts {
		f.hostIndex = (f.hostIndex + 1) % len(f.hosts)
		host := f.hosts[f.hostIndex]
		queue := f.queues[host]
		if len(queue) == 0 {
			continue
		}
		url := queue[0]
		f.queues[host] = queue[1:]
		return url, true
	}
	return "", false
}

// MarkComplete flips the matching entry to completed. Calling it twice, or
// for a URL never added, leaves state unchanged.
func (f *Frontier) MarkComplete(ctx context.Context, rawURL string) error {
	normalized, err := urlutil.Normalize(rawURL)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	hash := urlutil.Hash(normalized)

	f.mu.Lock()
	defer f.mu.Unlock()

	e, exists := f.entries[hash]
	if !exists {
		f.logger.Debug("Completion for unknown URL ignored", zap.String("url", normalized))
		return nil
	}
	if e.Completed {
		return nil
	}

	e.Completed = true
	if err := f.persistLocked(ctx, hash, e); err != nil {
		return err
	}
	f.entries[hash] = e
	f.pending--
	metrics.SetFrontierPending(f.pending)
	return nil
}

// Pending returns the number of uncompleted entries.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

// enqueueLocked appends url to its host queue, creating the queue on first
// sight of the host. Caller holds f.mu.
func (f *Frontier) enqueueLocked(url string) {
	host := urlutil.Host(url)
	if _, exists := f.queues[host]; !exists {
		f.hosts = append(f.hosts, host)
	}
	f.queues[host] = append(f.queues[host], url)
	f.pending++
}

// persistLocked mirrors an entry to the durable bucket. The mutation is not
// considered committed until the write succeeds. Caller holds f.mu.
func (f *Frontier) persistLocked(ctx context.Context, hash string, e entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode frontier entry: %w", err)
	}
	if err := f.bucket.Put(ctx, hash, string(raw)); err != nil {
		return fmt.Errorf("persist frontier entry: %w", err)
	}
	return nil
}
