// Package server exposes the platform core over HTTP: the aggregated
// creator directory and the video feedback API consumed by the review
// screen. Authentication lives in the gateway in front of this service;
// the authenticated role arrives in the X-Cnec-Role header and handlers
// still reject roles the operation does not allow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mktbiz-byte/cnec-platform/internal/aggregate"
	"github.com/mktbiz-byte/cnec-platform/internal/storage"
	"github.com/mktbiz-byte/cnec-platform/internal/store"
)

// Config holds server settings.
type Config struct {
	Port           int
	AllowedOrigins []string

	// Review tolerances handed to the review screen. Zero means the
	// annotation package defaults.
	BoxTolerance     float64
	CommentTolerance float64
}

// Server wires the HTTP API to the aggregator and the central store.
type Server struct {
	cfg        Config
	aggregator *aggregate.Aggregator
	store      store.Store
	uploader   storage.Uploader
	router     chi.Router
}

// New builds the router with its middleware stack.
func New(cfg Config, agg *aggregate.Aggregator, st store.Store, uploader storage.Uploader) *Server {
	s := &Server{
		cfg:        cfg,
		aggregator: agg,
		store:      st,
		uploader:   uploader,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", roleHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/review/config", s.handleReviewConfig)

		r.Route("/creators", func(r chi.Router) {
			r.Get("/", s.handleListCreators)
			r.Get("/stats", s.handleCreatorStats)
			r.Get("/{region}", s.handleCreatorsByRegion)
		})

		r.Route("/submissions/{id}/feedback", func(r chi.Router) {
			r.Get("/", s.handleListFeedback)
			r.With(requireRole(roleCompany)).Post("/", s.handleCreateFeedback)
		})

		r.Route("/feedback/{id}", func(r chi.Router) {
			r.With(requireRole(roleCompany)).Patch("/box", s.handleUpdateBox)
			r.With(requireRole(roleCompany)).Delete("/", s.handleDeleteFeedback)
			r.With(requireRole(roleCompany, roleCreator)).Post("/replies", s.handleAddReply)
		})
	})

	s.router = r
	return s
}

// Handler returns the root handler, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving the API until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
