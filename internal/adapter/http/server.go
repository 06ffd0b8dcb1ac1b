package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/palmer-drought-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBytes = 16 << 20
	// Computations run synchronously inside the request.
	computeWriteTimeout = 10 * time.Minute
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Computer runs one PDSI computation.
type Computer interface {
	Compute(ctx context.Context, req domain.ComputationRequest) (domain.ComputationResult, error)
}

// AllReady combines checkers; the first failure wins.
func AllReady(checkers ...ReadinessChecker) ReadinessChecker {
	return readinessChecks(checkers)
}

type readinessChecks []ReadinessChecker

func (c readinessChecks) CheckReadiness(ctx context.Context) error {
	for _, checker := range c {
		if err := checker.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Server exposes the compute API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	computer   Computer
	logger     *slog.Logger
}

// NewServer creates an HTTP server with POST /v1/pdsi, /healthz, /readyz, and
// /metrics routes.
func NewServer(addr string, ready ReadinessChecker, computer Computer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: computeWriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		computer: computer,
		logger:   logger,
	}

	mux.HandleFunc("POST /v1/pdsi", s.handleCompute)
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

func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req domain.ComputationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		err = fmt.Errorf("%w: decode request body: %v", domain.ErrMalformedInput, err)
		writeJSON(w, http.StatusBadRequest, domain.NewResponse(req.ID, domain.ComputationResult{}, err))
		return
	}
	if req.ID == "" {
		req.ID = r.Header.Get("X-Request-ID")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	result, err := s.computer.Compute(r.Context(), req)
	resp := domain.NewResponse(req.ID, result, err)
	status := StatusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("compute request failed", "request_id", req.ID, "error_kind", resp.ErrorKind, "error", err)
	}
	w.Header().Set("X-Request-ID", req.ID)
	writeJSON(w, status, resp)
}

// StatusForError maps a computation error to an HTTP status code.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrEngineNotFound), errors.Is(err, domain.ErrUnsupportedPlatform):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEngineTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
