// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/epcforward/internal/domain/outcome"
	"github.com/okian/epcforward/pkg/logger"
)

// Submitter runs a raw submission body through the forwarding pipeline.
type Submitter interface {
	Submit(ctx context.Context, path string, body []byte) outcome.Reply
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Submitter
	StatsProvider
	Started() bool
}

const (
	allowSubmitMethods = "POST, OPTIONS"
	defaultMaxBody     = 1 << 20
	timestampLayout    = "2006-01-02T15:04:05.000Z"
)

// Server wires HTTP routes for the forwarder.
type Server struct {
	router        *Router
	deps          Dependencies
	fallback      http.Handler
	maxBody       int64
	logger        logger.Logger
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithFallback sets the handler for requests outside the API surface.
func WithFallback(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.fallback = h
		}
	}
}

// WithMaxBodyBytes caps the accepted submission body size.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, submitPaths []string, opts ...Option) *Server {
	s := &Server{
		router:        NewRouter(submitPaths),
		deps:          deps,
		fallback:      http.NotFoundHandler(),
		maxBody:       defaultMaxBody,
		logger:        logger.Nop(),
		healthHandler: NewHealthHandler(deps.Started),
		statsHandler:  NewStatsHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to r. Operational endpoints are matched
// first; every other request goes through the submission router.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.HandleFunc("/*", s.ServeRoute)
}

// ServeRoute dispatches one request by its RouteKind.
func (s *Server) ServeRoute(w http.ResponseWriter, r *http.Request) {
	kind := s.router.Route(r.Method, r.URL.Path)
	MetricsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch kind {
		case RoutePreflight:
			w.WriteHeader(http.StatusNoContent)
		case RouteSubmit:
			s.handleSubmit(w, r)
		case RouteMethodNotAllowed:
			s.logger.Debug(r.Context(), "rejected request", logger.Error(NewKind("api.route", ErrMethodNotAllowed)), logger.String("method", r.Method), logger.String("path", r.URL.Path))
			w.Header().Set("Allow", allowSubmitMethods)
			writeJSON(w, http.StatusMethodNotAllowed, routeError{Message: "Method not allowed", Path: r.URL.Path, Timestamp: nowStamp()})
		case RouteAPINotFound:
			s.logger.Debug(r.Context(), "rejected request", logger.Error(NewKind("api.route", ErrAPINotFound)), logger.String("method", r.Method), logger.String("path", r.URL.Path))
			writeJSON(w, http.StatusNotFound, routeError{Message: "API endpoint not found", Path: r.URL.Path, Timestamp: nowStamp()})
		default:
			s.fallback.ServeHTTP(w, r)
		}
	}, kind.String())(w, r)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		err = WrapKind(op, ErrReadBody, err)
		s.logger.Error(r.Context(), "reading submission failed", logger.Error(err), logger.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, outcome.ClientResponse{
			Success: false,
			Message: outcome.MessageLocalError,
			Error:   err.Error(),
		})
		return
	}

	reply := s.deps.Submit(r.Context(), r.URL.Path, body)
	if reply.ContentType != "" {
		w.Header().Set("Content-Type", reply.ContentType)
	}
	w.WriteHeader(reply.Status)
	_, _ = w.Write(reply.Body)
}

type routeError struct {
	Message   string `json:"message"`
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

func nowStamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
