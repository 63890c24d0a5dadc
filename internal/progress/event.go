// Package progress provides the event primitives, non-blocking hub, and sink
// interfaces the crawl uses to report its own progress. Events batch on a
// background goroutine and fan out to pluggable sinks such as structured logs
// or the durable run-history store.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StagePageDone    Stage = "PAGE_DONE"
	StagePageSkipped Stage = "PAGE_SKIPPED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for completed pages.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single milestone of crawl progress.
type Event struct {
	// RunID identifies the crawl run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Site scopes page events to a host.
	Site string
	// URL is the page URL for page events.
	URL string
	// Bytes is the response size for a completed page.
	Bytes int64
	// Words is the page's word count, when known.
	Words int
	// StatusClass groups the HTTP status of a completed page.
	StatusClass StatusClass
	// Reason names the skip decision for PAGE_SKIPPED events.
	Reason string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StagePageDone:
		if e.Site == "" {
			return errors.New("page done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("page done requires status class")
		}
	case StagePageSkipped:
		if e.Reason == "" {
			return errors.New("page skipped requires reason")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for page events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
