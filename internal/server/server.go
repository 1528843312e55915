// Package server exposes the question answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campuskb/assist/internal/metrics"
	"github.com/campuskb/assist/internal/pipeline"
)

// ReadinessChecker reports whether a backing dependency is reachable.
type ReadinessChecker interface {
	CollectionExists(ctx context.Context) (bool, error)
}

// Config holds the HTTP listener settings.
type Config struct {
	Port           int
	APIKeys        []string
	AllowedOrigins []string
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	readiness  ReadinessChecker
	logger     *zap.Logger
}

func New(p *pipeline.Pipeline, readiness ReadinessChecker, cfg Config, logger *zap.Logger) *Server {
	s := &Server{
		pipeline:  p,
		readiness: readiness,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(cfg.AllowedOrigins))
	r.Use(apiKeyAuth(cfg.APIKeys, logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/ask", s.handleAsk)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	// Callers without session tracking get a fresh session per request.
	if strings.TrimSpace(req.SessionID) == "" {
		req.SessionID = uuid.NewString()
	}

	resp, err := s.pipeline.Ask(r.Context(), req)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues("error").Inc()
		s.logger.Error("ask failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	metrics.RequestsTotal.WithLabelValues(outcomeLabel(resp)).Inc()
	writeJSON(w, http.StatusOK, resp)
}

func outcomeLabel(resp *pipeline.Response) string {
	switch {
	case resp.Answer == pipeline.NoAnswerResponse:
		return "insufficient"
	case len(resp.Degraded) > 0:
		return "degraded"
	}
	return "ok"
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	exists, err := s.readiness.CollectionExists(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "vector store unreachable"})
		return
	}
	if !exists {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "collection missing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
