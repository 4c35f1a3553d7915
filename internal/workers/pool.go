package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"payment-relay/internal/dispatch"
	"payment-relay/internal/models"
	"payment-relay/internal/queue"
)

// Dispatcher forwards one payment request to an upstream processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *models.PaymentRequest) error
}

// Pool runs N long-lived workers consuming the ingest queue. Workers
// terminate only when they pop a sentinel; Stop pushes one sentinel per
// worker and waits for all of them.
type Pool struct {
	size       int
	queue      *queue.Queue
	dispatcher Dispatcher
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewPool(size int, q *queue.Queue, d Dispatcher, logger *slog.Logger) *Pool {
	return &Pool{
		size:       size,
		queue:      q,
		dispatcher: d,
		logger:     logger,
	}
}

// Start spawns the workers.
func (p *Pool) Start() {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("started payment workers", "count", p.size)
}

// Stop drains the pool: one sentinel per worker, then wait.
func (p *Pool) Stop() {
	for i := 0; i < p.size; i++ {
		p.queue.Push(nil)
	}
	p.wg.Wait()
	p.logger.Info("payment worker pool stopped")
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		req := p.queue.Pop()
		if req == nil {
			p.logger.Debug("worker stopping", "worker", id)
			return
		}

		err := p.dispatcher.Dispatch(context.Background(), req)
		if err == nil {
			continue
		}
		if errors.Is(err, dispatch.ErrAllProcessorsFailed) {
			// Unbounded retry: the request goes back on the queue with its
			// original correlation ID and waits for upstream recovery.
			p.logger.Warn("re-enqueueing payment after total failure",
				"worker", id,
				"correlationId", req.CorrelationID)
			p.queue.Push(req)
			continue
		}
		p.logger.Error("dispatch failed",
			"worker", id,
			"correlationId", req.CorrelationID,
			"error", err)
	}
}
