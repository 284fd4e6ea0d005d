// Package httpserver provides the HTTP REST API of the paper acquisition service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-acquisition-service/internal/database"
	"github.com/helixir/paper-acquisition-service/internal/domain"
	"github.com/helixir/paper-acquisition-service/internal/priority"
	"github.com/helixir/paper-acquisition-service/internal/search"
)

// Searcher dispatches searches to the configured sources.
type Searcher interface {
	Search(ctx context.Context, criteria *domain.SearchCriteria) ([]domain.Decision, error)
	Recent(ctx context.Context) ([]domain.Release, error)
}

// Submitter hands approved decisions to a download client.
type Submitter interface {
	Submit(ctx context.Context, decision *domain.Decision, clientID *int64) (*domain.GrabbedEvent, error)
}

// HealthReader exposes source health statistics and failure history.
type HealthReader interface {
	Statistics(ctx context.Context, sourceID int64) (*domain.Statistics, error)
	AllStatistics(ctx context.Context) ([]domain.Statistics, error)
	Failures(ctx context.Context, filter domain.FailureFilter) ([]domain.HealthEvent, int64, error)
}

// Maintainer runs housekeeping jobs on demand.
type Maintainer interface {
	PurgeHealthEvents(ctx context.Context, cutoff *time.Time) (int64, error)
	AdjustPriorities(ctx context.Context) (*priority.Result, error)
}

// Blocklist records releases that must not be submitted again.
type Blocklist interface {
	Add(ctx context.Context, release domain.Release, reason string) error
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Deps groups the handlers' collaborators.
type Deps struct {
	Catalog     search.Catalog
	Searcher    Searcher
	Submitter   Submitter
	Health      HealthReader
	Maintenance Maintainer
	Blocklist   Blocklist
	DB          HealthChecker
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Deps
	validate   *validator.Validate
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		deps:     deps,
		validate: newValidator(),
		logger:   logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogMiddleware(s.logger))
	r.Use(jsonContentTypeMiddleware)

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.searchHandler)
		r.Post("/submissions", s.submitHandler)
		r.Post("/blocklist", s.blocklistHandler)
		r.Get("/releases/recent", s.recentReleasesHandler)

		r.Get("/sources/statistics", s.allStatisticsHandler)
		r.Post("/sources/priorities:adjust", s.adjustPrioritiesHandler)
		r.Get("/sources/{sourceID}/statistics", s.sourceStatisticsHandler)
		r.Get("/sources/{sourceID}/failures", s.sourceFailuresHandler)

		r.Post("/health-events:purge", s.purgeHealthEventsHandler)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports ready once the database answers.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	health := s.deps.DB.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
