// Package server provides the HTTP API for FaceHub.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DevJelvehgar/face-similarity-search/internal/catalog"
	"github.com/DevJelvehgar/face-similarity-search/internal/config"
	"github.com/DevJelvehgar/face-similarity-search/internal/ingest"
	"github.com/DevJelvehgar/face-similarity-search/internal/search"
	"github.com/DevJelvehgar/face-similarity-search/internal/store"
	"go.uber.org/zap"
)

// Server is the HTTP server for the FaceHub API.
type Server struct {
	engine  *search.Engine
	store   *store.Store
	builder *ingest.Builder
	catalog *catalog.Catalog // optional
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies. catalog may be nil.
func NewServer(
	engine *search.Engine,
	st *store.Store,
	builder *ingest.Builder,
	cat *catalog.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:  engine,
		store:   st,
		builder: builder,
		catalog: cat,
		config:  cfg,
		logger:  logger,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/rebuild", s.handleRebuild)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
