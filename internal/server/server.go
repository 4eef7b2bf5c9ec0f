package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"forky/internal/config"
	"forky/internal/emt"
	"forky/internal/reader"
	"forky/internal/storage"
	"forky/internal/syncer"
)

// Server is the JSON HTTP boundary in front of the sync engine and the
// stop cache.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Server with all routes registered. baseCtx bounds the
// lifetime of background syncs triggered over HTTP.
func New(baseCtx context.Context, cfg *config.Config, db *storage.DB, client *emt.Client, engine *syncer.Engine, rd *reader.Reader, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	h := &handlers{
		engine:  engine,
		reader:  rd,
		tokens:  db,
		client:  client,
		cfg:     cfg,
		logger:  logger,
		baseCtx: baseCtx,
	}

	mux.HandleFunc("POST /api/login", h.login)
	mux.HandleFunc("POST /api/sync", h.sync)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/stops", h.stops)
	mux.HandleFunc("GET /api/stops/next", h.stopsNext)
	mux.HandleFunc("GET /api/stops/search", h.search)
	mux.HandleFunc("GET /api/stops/{id}/arrivals", h.arrivals)

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("server starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}
