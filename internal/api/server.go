// Package api serves the reporting and queue-operations HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/siddham-jain/msme-mitr-sub000/internal/analytics"
	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// QueueOps is the job-queue operator surface the API exposes;
// *queue.Processor satisfies it.
type QueueOps interface {
	Stats(ctx context.Context) (store.QueueStats, error)
	RetryFailed(ctx context.Context) (int, error)
}

type Server struct {
	router    *chi.Mux
	analytics *analytics.Aggregator
	queue     QueueOps
	logger    *slog.Logger
	port      int
}

func NewServer(port int, agg *analytics.Aggregator, queue QueueOps, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:    router,
		analytics: agg,
		queue:     queue,
		logger:    logger,
		port:      port,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", s.summary)
			r.Get("/attributes", s.attributes)
			r.Get("/interests", s.interests)
			r.Get("/export", s.export)
		})
		r.Route("/queue", func(r chi.Router) {
			r.Get("/stats", s.queueStats)
			r.Post("/retry-failed", s.retryFailed)
		})
	})
	return s
}

// Handler exposes the router for tests and custom servers.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api server starting", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
