package workers

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-relay/internal/dispatch"
	"payment-relay/internal/models"
	"payment-relay/internal/queue"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDispatcher struct {
	mu        sync.Mutex
	succeeded []uuid.UUID
	failFirst map[uuid.UUID]bool
	calls     atomic.Int64
}

func (f *fakeDispatcher) Dispatch(_ context.Context, req *models.PaymentRequest) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst[req.CorrelationID] {
		delete(f.failFirst, req.CorrelationID)
		return dispatch.ErrAllProcessorsFailed
	}
	f.succeeded = append(f.succeeded, req.CorrelationID)
	return nil
}

func (f *fakeDispatcher) successes() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.succeeded...)
}

func TestPoolProcessesAllRequests(t *testing.T) {
	q := queue.New()
	d := &fakeDispatcher{}
	pool := NewPool(4, q, d, discardLogger())

	const n = 100
	for i := 0; i < n; i++ {
		q.Push(&models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1})
	}

	pool.Start()
	require.Eventually(t, func() bool {
		return len(d.successes()) == n
	}, 2*time.Second, 5*time.Millisecond)

	pool.Stop()
	assert.Equal(t, int64(n), d.calls.Load())
	assert.Equal(t, 0, q.Len())
}

func TestPoolReenqueuesOnTotalFailure(t *testing.T) {
	q := queue.New()
	victim := uuid.New()
	d := &fakeDispatcher{failFirst: map[uuid.UUID]bool{victim: true}}
	pool := NewPool(2, q, d, discardLogger())

	q.Push(&models.PaymentRequest{CorrelationID: victim, Amount: 5.50})
	pool.Start()

	require.Eventually(t, func() bool {
		return len(d.successes()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	pool.Stop()

	// One failed attempt, one successful retry of the same request.
	assert.Equal(t, int64(2), d.calls.Load())
	assert.Equal(t, []uuid.UUID{victim}, d.successes())
}

func TestStopTerminatesAllWorkers(t *testing.T) {
	q := queue.New()
	d := &fakeDispatcher{}
	pool := NewPool(8, q, d, discardLogger())
	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not terminate all workers")
	}
	assert.Equal(t, 0, q.Len())
}

func TestStopDrainsPendingWorkFirst(t *testing.T) {
	q := queue.New()
	d := &fakeDispatcher{}
	pool := NewPool(2, q, d, discardLogger())

	const n = 20
	for i := 0; i < n; i++ {
		q.Push(&models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1})
	}

	pool.Start()
	pool.Stop()

	// Sentinels sit behind the buffered work, so everything pushed before
	// Stop is dispatched.
	assert.Len(t, d.successes(), n)
}
