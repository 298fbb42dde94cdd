package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/nws-alert-ingest/internal/domain"
	"github.com/couchcryptid/nws-alert-ingest/internal/pipeline"
)

// Poller runs poll cycles and reports scheduler state.
type Poller interface {
	Poll(ctx context.Context) domain.PollResult
	Status(ctx context.Context) (pipeline.Status, error)
}

// Server exposes the manual poll trigger, status, health, readiness, and
// metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	poller     Poller
	logger     *slog.Logger
}

// NewServer creates an HTTP server with POST /poll, GET /status, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, poller Poller, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// A manual poll may backfill many parents, each bounded only by
			// the source request timeout.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		poller: poller,
		logger: logger,
	}

	mux.HandleFunc("POST /poll", s.handlePoll)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handlePoll runs a cycle detached from the request context, so a client
// that disconnects cannot abort it halfway.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("manual poll requested", "remote_addr", r.RemoteAddr)
	res := s.poller.Poll(context.WithoutCancel(r.Context()))

	status := http.StatusOK
	if res.Status == domain.PollError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.poller.Status(r.Context())
	if err != nil {
		s.logger.Error("read poll status failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
