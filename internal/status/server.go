// Package status serves the operational HTTP endpoints: liveness, token
// bucket state, recent failed calls and Prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	"github.com/vietddude/landplan/internal/infra/storage"
)

const (
	defaultFailureLimit = 20
	maxFailureLimit     = 200
)

// LimitReporter reports token bucket state without consuming tokens.
type LimitReporter interface {
	Snapshot() map[domain.ResourceName]ratelimit.Status
}

// Server provides HTTP endpoints for monitoring.
type Server struct {
	limits   LimitReporter
	failures storage.FailedCallRepository
	started  time.Time
	server   *http.Server
}

// NewServer creates a status server. failures may be nil.
func NewServer(limits LimitReporter, failures storage.FailedCallRepository, port int) *Server {
	s := &Server{
		limits:   limits,
		failures: failures,
		started:  time.Now(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ratelimit", s.handleRateLimit)
	mux.HandleFunc("/failures", s.handleFailures)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleRateLimit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limits.Snapshot())
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	if s.failures == nil {
		writeJSON(w, http.StatusOK, []*domain.FailedCall{})
		return
	}

	limit := defaultFailureLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxFailureLimit)
	}

	calls, err := s.failures.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to load failed calls", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load failed calls"})
		return
	}
	if calls == nil {
		calls = []*domain.FailedCall{}
	}
	writeJSON(w, http.StatusOK, calls)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
