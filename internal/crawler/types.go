// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"strconv"
)

// Response is the result of fetching a URL.
type Response struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after any redirects were resolved.
	FinalURL string

	// StatusCode is the HTTP status of the response; 0 on a transport error.
	StatusCode int

	// Headers are the response headers.
	Headers http.Header

	// Body is the raw response body. Empty when the fetch produced nothing
	// usable.
	Body []byte
}

// Usable reports whether the response carries a body worth processing.
func (r *Response) Usable() bool {
	return r != nil && len(r.Body) > 0
}

// ContentLength returns the declared Content-Length header, or -1 when absent
// or unparseable.
func (r *Response) ContentLength() int64 {
	if r == nil || r.Headers == nil {
		return -1
	}
	raw := r.Headers.Get("Content-Length")
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

// SkipReason identifies why the pipeline completed a URL without content.
type SkipReason string

// Skip reasons recorded in logs and metrics. The skip store itself only
// remembers that a URL was skipped, not why.
const (
	SkipProbeFailed SkipReason = "probe_failed"
	SkipEmptyPage   SkipReason = "empty_page"
	SkipTooLarge    SkipReason = "too_large"
	SkipLowInfo     SkipReason = "low_information"
	SkipDuplicate   SkipReason = "duplicate"
	SkipRobots      SkipReason = "robots_disallowed"
)
