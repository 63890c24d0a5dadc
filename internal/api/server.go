// Package api exposes the operational HTTP surface of a running crawl:
// health, Prometheus metrics, and a live stats snapshot.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuscrawl/campuscrawl/internal/config"
	"github.com/campuscrawl/campuscrawl/internal/crawler"
	"github.com/campuscrawl/campuscrawl/internal/metrics"
)

// StatsSource is the read-only view of crawl analytics the stats endpoint
// renders.
type StatsSource interface {
	SkippedCount() int
	Max() (url string, words int)
}

// Server wires the ops HTTP handlers to the running crawl's components.
type Server struct {
	router   chi.Router
	cfg      config.Config
	runID    string
	frontier crawler.Frontier
	stats    StatsSource
	clock    crawler.Clock
	started  time.Time
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	cfg config.Config,
	runID string,
	frontier crawler.Frontier,
	stats StatsSource,
	clock crawler.Clock,
	logger *zap.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		runID:    runID,
		frontier: frontier,
		stats:    stats,
		clock:    clock,
		started:  clock.Now(),
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/v1/stats", s.getStats)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the ops server until ctx is canceled, then shuts it down
// gracefully. The crawl does not depend on this server; a listen failure is
// surfaced but the caller may choose to continue without it.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ops server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Components are constructed before the server starts, so a serving
	// process is a ready process.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	maxURL, maxWords := s.stats.Max()
	s.writeJSON(w, http.StatusOK, statsResponse{
		RunID:         s.runID,
		UptimeSeconds: int64(s.clock.Now().Sub(s.started).Seconds()),
		Pending:       s.frontier.Pending(),
		Skipped:       s.stats.SkippedCount(),
		LongestURL:    maxURL,
		LongestWords:  maxWords,
	})
}

type statsResponse struct {
	RunID         string `json:"run_id"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Pending       int    `json:"pending"`
	Skipped       int    `json:"skipped"`
	LongestURL    string `json:"longest_url"`
	LongestWords  int    `json:"longest_words"`
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
