package queue

import (
	"sync"

	"payment-relay/internal/models"
)

// Queue is an unbounded multi-producer multi-consumer FIFO buffering
// accepted payment requests until a worker picks them up. Push never
// blocks, so ingest latency stays independent of upstream health.
//
// A nil request is an in-band sentinel: each one terminates exactly one
// consumer blocked in Pop.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []*models.PaymentRequest
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a request to the tail of the queue.
func (q *Queue) Push(req *models.PaymentRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the head of the queue, blocking until an item
// is available.
func (q *Queue) Pop() *models.PaymentRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	req := q.items[0]
	q.items = q.items[1:]
	return req
}

// Len reports the number of buffered items, sentinels included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
