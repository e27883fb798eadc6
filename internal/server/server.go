// Package server implements the HTTP transport layer for the cache-aside service.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eugener/cacheaside/internal/app"
	"github.com/eugener/cacheaside/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Movies         *app.MovieService
	Profiles       *app.ProfileService
	Leaderboard    *app.LeaderboardService
	Keys           *app.KeyService
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no request metrics
	MetricsHandler http.Handler       // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	// System endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Get("/movies/{id}", s.handleGetMovie)
	r.Post("/movies", s.handleUpsertMovie)

	r.Patch("/users/{id}", s.handlePatchUser)
	r.Get("/users/{id}", s.handleGetUser)

	r.Post("/leaderboard/score", s.handleAddScore)
	r.Get("/leaderboard/top/{n}", s.handleTop)

	r.Delete("/cache/{key}", s.handleDeleteKey)

	return r
}

type server struct {
	deps Deps
}
