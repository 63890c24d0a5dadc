// Package simhash computes 256-bit content fingerprints and rejects pages
// whose fingerprint is too similar to one already seen.
package simhash

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"sync"

	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/metrics"
	"github.com/campuscrawl/campuscrawl/internal/store"
)

// BitWidth is the fingerprint width in bits.
const BitWidth = 256

const words = BitWidth / 64

// Fingerprint is a fixed-width content fingerprint. Similarity between two
// fingerprints is the fraction of matching bit positions.
type Fingerprint [words]uint64

// Compute builds the fingerprint for a token-frequency map. Each token's
// SHA-256 hash votes its frequency into a per-bit accumulator: +freq where
// the hash bit is 1, -freq where it is 0. The fingerprint bit is 1 iff the
// accumulator ends strictly positive.
func Compute(frequencies map[string]int) Fingerprint {
	var vector [BitWidth]int

	for token, freq := range frequencies {
		sum := sha256.Sum256([]byte(token))
		for w := 0; w < words; w++ {
			word := binary.BigEndian.Uint64(sum[w*8 : (w+1)*8])
			for b := 0; b < 64; b++ {
				if word>>b&1 == 1 {
					vector[w*64+b] += freq
				} else {
					vector[w*64+b] -= freq
				}
			}
		}
	}

	var fp Fingerprint
	for i, count := range vector {
		if count > 0 {
			fp[i/64] |= 1 << (i % 64)
		}
	}
	return fp
}

// Similarity returns the fraction of bit positions on which a and b agree,
// in [0, 1]. It is symmetric and Similarity(x, x) == 1.
func Similarity(a, b Fingerprint) float64 {
	same := 0
	for w := 0; w < words; w++ {
		// Inverting the XOR marks matching bits; the word width equals the
		// declared fingerprint width, so no spurious high bits appear.
		same += bits.OnesCount64(^(a[w] ^ b[w]))
	}
	return float64(same) / float64(BitWidth)
}

// Hex returns the fingerprint as a 64-character hex string, most significant
// word first.
func (f Fingerprint) Hex() string {
	var buf [words * 8]byte
	for w := 0; w < words; w++ {
		binary.BigEndian.PutUint64(buf[w*8:(w+1)*8], f[words-1-w])
	}
	return hex.EncodeToString(buf[:])
}

// Parse decodes a fingerprint produced by Hex.
func Parse(s string) (Fingerprint, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(raw) != words*8 {
		return Fingerprint{}, fmt.Errorf("fingerprint length %d, want %d", len(raw), words*8)
	}
	var fp Fingerprint
	for w := 0; w < words; w++ {
		fp[words-1-w] = binary.BigEndian.Uint64(raw[w*8 : (w+1)*8])
	}
	return fp, nil
}

// Detector stores one fingerprint per accepted page and answers whether new
// content near-duplicates any of them.
type Detector struct {
	mu sync.Mutex

	threshold float64
	bucket    *store.Bucket
	logger    *zap.Logger

	// fingerprints is append-only, keyed by page URL.
	fingerprints map[string]Fingerprint
}

// New builds a Detector with the given similarity threshold, reloading any
// persisted fingerprints.
func New(ctx context.Context, bucket *store.Bucket, threshold float64, logger *zap.Logger) (*Detector, error) {
	d := &Detector{
		threshold:    threshold,
		bucket:       bucket,
		logger:       logger,
		fingerprints: make(map[string]Fingerprint),
	}

	err := bucket.ForEach(ctx, func(key, value string) error {
		fp, perr := Parse(value)
		if perr != nil {
			return fmt.Errorf("load fingerprint for %s: %w", key, perr)
		}
		d.fingerprints[key] = fp
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load simhash store: %w", err)
	}

	if len(d.fingerprints) > 0 {
		logger.Info("SimHash store resumed", zap.Int("fingerprints", len(d.fingerprints)))
	}
	return d, nil
}

// CheckAndInsert fingerprints the frequencies and compares against every
// stored fingerprint. When none meets the threshold the fingerprint is
// stored under url and false is returned; otherwise true. The whole
// compare-then-insert runs under one lock so concurrent identical pages
// cannot both be admitted.
func (d *Detector) CheckAndInsert(ctx context.Context, url string, frequencies map[string]int) (bool, error) {
	fp := Compute(frequencies)

	d.mu.Lock()
	defer d.mu.Unlock()

	for seenURL, seen := range d.fingerprints {
		if sim := Similarity(fp, seen); sim >= d.threshold {
			d.logger.Info("Near-duplicate content rejected",
				zap.String("url", url),
				zap.String("similar_to", seenURL),
				zap.Float64("similarity", sim),
			)
			metrics.ObserveDuplicate()
			return true, nil
		}
	}

	if err := d.bucket.Put(ctx, url, fp.Hex()); err != nil {
		return false, fmt.Errorf("persist fingerprint: %w", err)
	}
	d.fingerprints[url] = fp
	return false, nil
}
