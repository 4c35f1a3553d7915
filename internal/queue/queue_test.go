package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-relay/internal/models"
)

func TestFIFOOrder(t *testing.T) {
	q := New()

	first := &models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1}
	second := &models.PaymentRequest{CorrelationID: uuid.New(), Amount: 2}
	third := &models.PaymentRequest{CorrelationID: uuid.New(), Amount: 3}

	q.Push(first)
	q.Push(second)
	q.Push(third)

	assert.Equal(t, 3, q.Len())
	assert.Same(t, first, q.Pop())
	assert.Same(t, second, q.Pop())
	assert.Same(t, third, q.Pop())
	assert.Equal(t, 0, q.Len())
}

func TestSentinelIsInBand(t *testing.T) {
	q := New()
	q.Push(&models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1})
	q.Push(nil)

	assert.NotNil(t, q.Pop())
	assert.Nil(t, q.Pop())
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	got := make(chan *models.PaymentRequest, 1)

	go func() {
		got <- q.Pop()
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(20 * time.Millisecond):
	}

	want := &models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1}
	q.Push(want)

	select {
	case req := <-got:
		assert.Same(t, want, req)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const producers = 4
	const perProducer = 250

	q := New()

	var producerWg sync.WaitGroup
	for i := 0; i < producers; i++ {
		producerWg.Add(1)
		go func() {
			defer producerWg.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(&models.PaymentRequest{CorrelationID: uuid.New(), Amount: 1})
			}
		}()
	}

	var mu sync.Mutex
	seen := make(map[uuid.UUID]int)
	var consumerWg sync.WaitGroup
	for i := 0; i < 3; i++ {
		consumerWg.Add(1)
		go func() {
			defer consumerWg.Done()
			for {
				req := q.Pop()
				if req == nil {
					return
				}
				mu.Lock()
				seen[req.CorrelationID]++
				mu.Unlock()
			}
		}()
	}

	producerWg.Wait()
	for i := 0; i < 3; i++ {
		q.Push(nil)
	}
	consumerWg.Wait()

	require.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "request %s delivered more than once", id)
	}
}
