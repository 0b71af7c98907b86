// Package server exposes the HTTP intake surface: the POST intake route and
// the health endpoint, with explicit per-request context construction.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/message-intake/internal/intake"
	"github.com/example/message-intake/internal/models"
	"github.com/example/message-intake/internal/pipeline"
)

// Header names recognised by the intake surface.
const (
	HeaderTransactionID = "X-Transaction-Id"
	HeaderRequestID     = "X-Request-Id"
)

// Response status labels.
const (
	statusOK       = "OK"
	statusRejected = "Rejected"
	statusError    = "Error"
)

// Config tunes the HTTP server.
type Config struct {
	IntakePath   string
	MaxBodyBytes int
	MaxInFlight  int
}

// Server routes intake requests into the pipeline.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
	inflight *semaphore.Weighted
	now      func() time.Time
}

// Option customises the server during construction.
type Option func(*Server)

// WithClock overrides the clock used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Server over the supplied pipeline.
func New(cfg Config, p *pipeline.Pipeline, logger zerolog.Logger, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, errMissingPipeline
	}
	if cfg.IntakePath == "" {
		cfg.IntakePath = "/msa/in"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 64
	}

	srv := &Server{
		cfg:      cfg,
		pipeline: p,
		logger:   logger.With().Str("component", "http-server").Logger(),
		inflight: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(srv)
		}
	}
	return srv, nil
}

// Router assembles the chi router. Routes are registered without trailing
// slashes; chi 404s the slash variants, which the intake contract requires.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.accessLog)

	r.Get("/_healthy", s.handleHealthy)
	r.With(s.limitInFlight).Post(s.cfg.IntakePath, s.handleIntake)

	return r
}

type response struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

func (s *Server) writeResponse(w http.ResponseWriter, code int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response body")
	}
}

// accessLog emits one structured log line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := s.now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", s.now().Sub(start)).
			Msg("request handled")
	})
}

// limitInFlight bounds the number of concurrently processed intake requests.
func (s *Server) limitInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.inflight.TryAcquire(1) {
			s.writeResponse(w, http.StatusServiceUnavailable, response{
				RequestID: uuid.NewString(),
				Status:    statusError,
				Message:   "Service is at capacity",
			})
			return
		}
		defer s.inflight.Release(1)
		next.ServeHTTP(w, r)
	})
}

// requestContext builds the explicit per-request context value carried
// through every pipeline stage.
func (s *Server) requestContext(r *http.Request) models.RequestContext {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	return models.RequestContext{
		RequestID:     uuid.NewString(),
		TransactionID: r.Header.Get(HeaderTransactionID),
		ReceivedAt:    s.now().UTC(),
		Headers:       headers,
	}
}

func statusLabel(class intake.Class) string {
	if class == intake.ClassUnexpected {
		return statusError
	}
	return statusRejected
}

var errMissingPipeline = errServer("server: pipeline is required")

type errServer string

func (e errServer) Error() string { return string(e) }

// Shutdown is a convenience wrapper for graceful http.Server shutdown with a
// bounded wait.
func Shutdown(ctx context.Context, httpServer *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
