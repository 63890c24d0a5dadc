package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/campuscrawl/campuscrawl/internal/progress"
	"github.com/campuscrawl/campuscrawl/internal/store"
)

// RunRecord is the durable per-run summary the StoreSink maintains. One
// record exists per run ID; page events fold into its counters.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Finished  bool      `json:"finished"`
	Pages     int64     `json:"pages"`
	Skips     int64     `json:"skips"`
	Bytes     int64     `json:"bytes"`
}

// StoreSink folds progress events into per-run records in a store bucket, so
// the run history survives restarts alongside the crawl state itself.
type StoreSink struct {
	mu     sync.Mutex
	bucket *store.Bucket
	runs   map[string]*RunRecord
}

// NewStoreSink builds a sink over the given bucket, reloading existing run
// records so a resumed run keeps accumulating into its record.
func NewStoreSink(ctx context.Context, bucket *store.Bucket) (*StoreSink, error) {
	s := &StoreSink{
		bucket: bucket,
		runs:   make(map[string]*RunRecord),
	}
	err := bucket.ForEach(ctx, func(key, value string) error {
		var rec RunRecord
		if uerr := json.Unmarshal([]byte(value), &rec); uerr != nil {
			return fmt.Errorf("decode run record %s: %w", key, uerr)
		}
		s.runs[key] = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load run history: %w", err)
	}
	return s, nil
}

// Consume folds the batch into run records and persists every touched one.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]*RunRecord)
	for _, evt := range batch {
		rec := s.runs[evt.RunID]
		if rec == nil {
			rec = &RunRecord{RunID: evt.RunID, StartedAt: evt.TS}
			s.runs[evt.RunID] = rec
		}
		rec.UpdatedAt = evt.TS

		switch evt.Stage {
		case progress.StageRunStart:
			rec.StartedAt = evt.TS
		case progress.StageRunDone:
			rec.Finished = true
		case progress.StagePageDone:
			rec.Pages++
			rec.Bytes += evt.Bytes
		case progress.StagePageSkipped:
			rec.Skips++
		}
		touched[evt.RunID] = rec
	}

	for runID, rec := range touched {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode run record: %w", err)
		}
		if err := s.bucket.Put(ctx, runID, string(encoded)); err != nil {
			return fmt.Errorf("persist run record: %w", err)
		}
	}
	return nil
}

// Record returns a copy of the run's current record.
func (s *StoreSink) Record(runID string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// Close satisfies the Sink interface; the store is closed by its owner.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
