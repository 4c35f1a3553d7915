package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"payment-relay/internal/config"
	"payment-relay/internal/health"
	"payment-relay/internal/models"
	"payment-relay/internal/queue"
	"payment-relay/internal/workers"
)

// Storage is the slice of the payment store the HTTP surface needs.
type Storage interface {
	Summarize(ctx context.Context, from, to time.Time) (*models.Summary, error)
	PurgeAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Server wires the HTTP surface to the ingest queue and the store.
type Server struct {
	cfg     *config.AppConfig
	store   Storage
	queue   *queue.Queue
	pool    *workers.Pool
	sampler *health.Sampler
	logger  *slog.Logger
}

func New(cfg *config.AppConfig, store Storage, q *queue.Queue, pool *workers.Pool, sampler *health.Sampler, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		queue:   q,
		pool:    pool,
		sampler: sampler,
		logger:  logger,
	}
}

// HTTPServer builds the listener with timeouts tuned for short requests:
// ingest enqueues and returns, summaries are a pair of range scans.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  30 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Shutdown drains the dispatch pipeline: sentinels to every worker, wait
// for them, then stop the sampler.
func (s *Server) Shutdown() {
	if s.pool != nil {
		s.pool.Stop()
	}
	if s.sampler != nil {
		s.sampler.Stop()
	}
}
