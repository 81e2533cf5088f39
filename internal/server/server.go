// Package server exposes the pipeline over an HTTP JSON API plus a
// WebSocket progress stream.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/optiview/optiview/internal/service"
)

// Server wraps the HTTP server with dependencies and lifecycle management.
type Server struct {
	svc    *service.Service
	hub    *Hub
	logger *slog.Logger
	http   *http.Server
}

// New creates the server. hub may be nil when no WebSocket stream is
// wanted.
func New(addr string, svc *service.Service, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{svc: svc, hub: hub, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/projects/{projectId}/crawl", s.handleStartCrawl)
	mux.HandleFunc("GET /api/projects/{projectId}/status", s.handleStatus)
	mux.HandleFunc("POST /api/projects/{projectId}/indexes", s.handleBuildIndexes)
	mux.HandleFunc("POST /api/projects/{projectId}/scans", s.handleExecuteScan)
	mux.HandleFunc("GET /api/projects/{projectId}/scans", s.handleListScans)
	mux.HandleFunc("GET /api/projects/{projectId}/scans/{scanId}", s.handleGetScan)
	mux.HandleFunc("GET /api/projects/{projectId}/scans/{scanId}/recommendations", s.handleRecommendations)
	mux.HandleFunc("POST /api/projects/{projectId}/scans/{scanId}/plan", s.handleGeneratePlan)
	mux.HandleFunc("GET /api/projects/{projectId}/scans/{scanId}/plan", s.handleGetPlan)
	mux.HandleFunc("PATCH /api/projects/{projectId}/scans/{scanId}/plan/{actionId}", s.handleToggleAction)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /health", s.handleHealth)
	if hub != nil {
		mux.HandleFunc("GET /ws", hub.handleWS)
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           logRequests(logger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(shutdownCtx)
}

// Handler exposes the configured handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
