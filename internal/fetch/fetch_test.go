package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Crawler.UserAgent = "campuscrawl-test"
	return cfg
}

func TestFetchReturnsBodyAndHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, srv.URL+"/page", resp.URL)
	require.Contains(t, string(resp.Body), "hello")
	require.Equal(t, "text/html; charset=utf-8", resp.Headers.Get("Content-Type"))
	require.Equal(t, "campuscrawl-test", gotUA)
	require.True(t, resp.Usable())
}

func TestFetchSurfacesErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Fetch(context.Background(), srv.URL+"/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.False(t, resp.Usable())
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, srv.URL+"/old", resp.URL)
	require.Equal(t, srv.URL+"/new", resp.FinalURL)
	require.Equal(t, "landed", string(resp.Body))
}

func TestProbeUsesHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Length", "12345")
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	resp, err := client.Probe(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int64(12345), resp.ContentLength())
	require.Empty(t, resp.Body)
}

func TestProbeThenFetchSameURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("twice is fine"))
	}))
	defer srv.Close()

	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Probe(ctx, srv.URL+"/p")
	require.NoError(t, err)

	resp, err := client.Fetch(ctx, srv.URL+"/p")
	require.NoError(t, err)
	require.Equal(t, "twice is fine", string(resp.Body))
}

func TestFetchTransportError(t *testing.T) {
	client, err := New(testConfig(), zap.NewNop())
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
	require.Error(t, err)
}
