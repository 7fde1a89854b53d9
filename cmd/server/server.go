package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/shelflife/compliance"
	"github.com/liamcoop/shelflife/internal/logger"
	"github.com/liamcoop/shelflife/internal/metrics"
	"github.com/liamcoop/shelflife/rulebook"
)

// Server serves the shelf-life HTTP API
type Server struct {
	db        *sql.DB // nil unless the postgres store is used
	storeName string
	rulebooks *rulebook.Manager
	checks    *compliance.Engine
	router    *chi.Mux
	opts      ServerOptions
}

// ServerOptions tunes request handling
type ServerOptions struct {
	RequestTimeout time.Duration
	SlowRequest    time.Duration
}

// DefaultServerOptions matches the defaults in internal/config
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		RequestTimeout: 60 * time.Second,
		SlowRequest:    500 * time.Millisecond,
	}
}

// NewServer wires the API over a loaded rule book manager and compliance engine.
// db is pinged by the health check when non-nil.
func NewServer(rulebooks *rulebook.Manager, checks *compliance.Engine, db *sql.DB, storeName string, opts ServerOptions) *Server {
	s := &Server{
		db:        db,
		storeName: storeName,
		rulebooks: rulebooks,
		checks:    checks,
		opts:      opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/api/v1/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	// Acceptance
	r.Post("/api/v1/calculate", s.handleCalculate)
	r.Post("/api/v1/inspect", s.handleInspect)
	r.Get("/api/v1/tiers", s.handleTiers)

	// Rule book versions
	r.Route("/api/v1/rulebooks", func(r chi.Router) {
		r.Get("/", s.handleListRuleBooks)
		r.Post("/", s.handlePublishRuleBook)
		r.Get("/active", s.handleActiveRuleBook)

		r.Route("/{version}", func(r chi.Router) {
			r.Get("/", s.handleGetRuleBook)
			r.Post("/activate", s.handleActivateRuleBook)
		})
	})

	// Compliance checks
	r.Route("/api/v1/checks", func(r chi.Router) {
		r.Get("/", s.handleListChecks)
		r.Post("/", s.handleCreateCheck)
		r.Get("/{checkId}", s.handleGetCheck)
		r.Put("/{checkId}", s.handleUpdateCheck)
		r.Delete("/{checkId}", s.handleDeleteCheck)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLog logs each request, feeds the status counters and records latency
// per route pattern
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			metrics.ObserveRequest(r.Method, route, status, elapsed)
			logger.RecordStatus(status)

			attrs := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			}
			switch {
			case status >= 500:
				logger.Error("request failed", attrs...)
			case elapsed > s.opts.SlowRequest:
				logger.RecordSlowRequest()
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request", attrs...)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Store: s.storeName}
	if current := s.rulebooks.Current(); current != nil {
		resp.RuleBookVersion = current.Version
	}

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}
