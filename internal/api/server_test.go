package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
)

type fakeFrontier struct {
	pending int
}

func (f *fakeFrontier) Add(ctx context.Context, url string) error { return nil }

func (f *fakeFrontier) Next(ctx context.Context) (string, bool) { return "", false }

func (f *fakeFrontier) MarkComplete(ctx context.Context, url string) error { return nil }

func (f *fakeFrontier) Pending() int { return f.pending }

type fakeStats struct {
	skipped  int
	maxURL   string
	maxWords int
}

func (s *fakeStats) SkippedCount() int { return s.skipped }

func (s *fakeStats) Max() (string, int) { return s.maxURL, s.maxWords }

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newTestServer() (*Server, *fixedClock) {
	clock := &fixedClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	srv := NewServer(
		config.Default(),
		"run-123",
		&fakeFrontier{pending: 42},
		&fakeStats{skipped: 7, maxURL: "http://ics.uci.edu/long", maxWords: 900},
		clock,
		zap.NewNop(),
	)
	return srv, clock
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		_ = resp.Body.Close()
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, clock := newTestServer()
	clock.now = clock.now.Add(90 * time.Second)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "run-123", body.RunID)
	require.Equal(t, int64(90), body.UptimeSeconds)
	require.Equal(t, 42, body.Pending)
	require.Equal(t, 7, body.Skipped)
	require.Equal(t, "http://ics.uci.edu/long", body.LongestURL)
	require.Equal(t, 900, body.LongestWords)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer()
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer()
	srv.cfg.Server.Port = 0 // ephemeral port; only lifecycle is under test

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
