// Package server exposes stored verdicts, failures, and agreement statistics
// over a read-only HTTP API with a small live dashboard.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/refjudge/refjudge/internal/classify"
)

// Config holds server configuration.
type Config struct {
	Port       int
	ReportsDir string // directory holding generated agreement reports
	AllowAll   bool   // allow all CORS origins (dev mode)
}

// Server serves the results API and dashboard for one verdict store.
type Server struct {
	cfg        Config
	store      *classify.Store
	router     chi.Router
	httpServer *http.Server
}

// New creates a Server over the given store.
func New(cfg Config, store *classify.Store) *Server {
	s := &Server{cfg: cfg, store: store}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/", s.handleIndex)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/verdicts", s.handleVerdicts)
	r.Get("/api/failures", s.handleFailures)
	r.Get("/api/agreement", s.handleAgreement)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/ws/live", s.handleLive)
	r.Get("/reports", s.handleReportList)
	r.Get("/reports/{name}", s.handleReport)

	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("refjudge results server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
