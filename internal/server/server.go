// Package server provides the HTTP API for the matching layer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/collabhub/matching/internal/config"
	"github.com/collabhub/matching/internal/indexer"
	"github.com/collabhub/matching/internal/keyword"
	"github.com/collabhub/matching/internal/metrics"
	"github.com/collabhub/matching/internal/search"
	"github.com/collabhub/matching/internal/seeding"
	"github.com/collabhub/matching/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP server for the matching API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	index   keyword.Engine
	seeder  *seeding.Seeder
	ledger  storage.Ledger
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSeeder enables the sync endpoints. ledger may be nil, in which case
// sync runs are not listed.
func WithSeeder(s *seeding.Seeder, ledger storage.Ledger) ServerOption {
	return func(srv *Server) {
		srv.seeder = s
		srv.ledger = ledger
	}
}

// NewServer creates a server with the given dependencies. index is used for
// status reporting only.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	index keyword.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		indexer: idx,
		index:   index,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/similar", s.handleSimilar)
		r.Get("/suggestions", s.handleSuggestions)

		r.Post("/documents", s.handleIndexDocument)
		r.Post("/documents/bulk", s.handleBulkIndex)
		r.Post("/documents/bulk-delete", s.handleBulkDelete)
		r.Put("/documents/{id}", s.handleUpdateDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Head("/documents/{id}", s.handleDocumentExists)

		r.Post("/sources/{type}/existing", s.handleExisting)
		r.Post("/sources/{type}/sync", s.handleSync)
		r.Delete("/sources/{type}/{id}", s.handleRemoveBySource)
		r.Post("/sources/{type}/{id}/activate", s.handleActivate)
		r.Post("/sources/{type}/{id}/deactivate", s.handleDeactivate)

		r.Post("/index/refresh", s.handleRefresh)
		r.Get("/sync/runs", s.handleSyncRuns)
		r.Get("/status", s.handleStatus)
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
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

// ReloadConfig re-reads path and swaps its search section into the query
// engine. Other sections need a restart and are ignored.
func (s *Server) ReloadConfig(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		s.logger.Warn("config reload failed", zap.String("path", path), zap.Error(err))
		return err
	}
	if err := s.engine.SetTuning(cfg.Search); err != nil {
		s.logger.Warn("search tuning rejected", zap.String("path", path), zap.Error(err))
		return err
	}
	s.logger.Info("search config reloaded", zap.String("path", path))
	return nil
}
