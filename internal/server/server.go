// Package server assembles the HTTP API around the job queue and
// storage backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/adlift/adlift/internal/errors"
	"github.com/adlift/adlift/internal/server/handlers"
	"github.com/adlift/adlift/internal/server/middleware"
	"github.com/adlift/adlift/pkg/batch"
	"github.com/adlift/adlift/pkg/queue"
	"github.com/adlift/adlift/pkg/storage"
)

// Server is the HTTP API server.
type Server struct {
	host     string
	port     int
	router   chi.Router
	handlers *handlers.Handlers
	log      *zap.Logger

	ShutdownTimeout time.Duration
}

// New builds a server with all routes registered.
func New(host string, port int, q *queue.Queue, b storage.Backend, p *batch.Processor, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		host:            host,
		port:            port,
		handlers:        handlers.New(q, b, p, log),
		log:             log,
		ShutdownTimeout: 10 * time.Second,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestLogger(s.log))
	r.NotFound(apperrors.NotFoundHandler)
	r.MethodNotAllowed(apperrors.MethodNotAllowedHandler)

	r.Get("/health", s.handlers.Health)
	r.Get("/version", s.handlers.VersionInfo)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/campaigns", s.handlers.SubmitCampaign)
		r.Post("/campaigns/batch", s.handlers.SubmitBatch)
		r.Get("/campaigns", s.handlers.ListCampaigns)
		r.Get("/campaigns/{id}", s.handlers.GetCampaign)
		r.Post("/campaigns/{id}/retry", s.handlers.RetryCampaign)
		r.Get("/stats", s.handlers.Stats)
		r.Get("/assets", s.handlers.ListAssets)
		r.Get("/storage", s.handlers.StorageInfo)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Port returns the configured listen port.
func (s *Server) Port() int { return s.port }

// Addr returns the listen address.
func (s *Server) Addr() string { return fmt.Sprintf("%s:%d", s.host, s.port) }

// Start serves until ctx is cancelled, then drains connections within
// ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.Addr(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.Addr()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
		defer cancel()
		s.log.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
