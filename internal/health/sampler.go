package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"payment-relay/internal/models"
	"payment-relay/internal/processors"
)

const probeTimeout = 3 * time.Second

// Snapshot is the latest known health of both processors. It is replaced
// wholesale by the sampler; readers must tolerate a nil snapshot before
// the first sample completes, and staleness after that.
type Snapshot struct {
	Default   models.ProcessorHealth `json:"default"`
	Fallback  models.ProcessorHealth `json:"fallback"`
	SampledAt time.Time              `json:"sampledAt"`
}

// For returns the entry for the given processor.
func (s *Snapshot) For(p models.Processor) models.ProcessorHealth {
	if p == models.ProcessorFallback {
		return s.Fallback
	}
	return s.Default
}

// Sink persists the latest sample outside the process.
type Sink interface {
	SetHealth(ctx context.Context, data []byte) error
}

// Sampler periodically probes both processors and publishes the latest
// snapshot. Probe failures leave the prior entry in place; the sampler
// never interrupts dispatch and never crashes on upstream trouble.
type Sampler struct {
	client   *processors.Client
	sink     Sink
	logger   *slog.Logger
	interval time.Duration

	latest atomic.Pointer[Snapshot]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSampler(client *processors.Client, sink Sink, logger *slog.Logger, interval time.Duration) *Sampler {
	ctx, cancel := context.WithCancel(context.Background())
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Sampler{
		client:   client,
		sink:     sink,
		logger:   logger,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the sampling goroutine. The first sample runs
// immediately.
func (s *Sampler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the sampler and waits for it to exit.
func (s *Sampler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Latest returns the most recent snapshot, or nil if no probe has
// succeeded yet.
func (s *Sampler) Latest() *Snapshot {
	return s.latest.Load()
}

func (s *Sampler) run() {
	defer s.wg.Done()

	s.sample()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sample()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Sampler) sample() {
	prev := s.latest.Load()
	next := Snapshot{SampledAt: time.Now().UTC()}
	if prev != nil {
		next.Default = prev.Default
		next.Fallback = prev.Fallback
	}

	sampled := prev != nil
	for _, p := range models.Processors() {
		ctx, cancel := context.WithTimeout(s.ctx, probeTimeout)
		health, err := s.client.CheckHealth(ctx, p)
		cancel()
		if err != nil {
			s.logger.Warn("health probe failed", "processor", p, "error", err)
			continue
		}
		sampled = true
		if p == models.ProcessorDefault {
			next.Default = *health
		} else {
			next.Fallback = *health
		}
	}

	// Until at least one probe succeeds there is nothing to publish.
	if !sampled {
		return
	}
	s.latest.Store(&next)
	s.persist(&next)
}

func (s *Sampler) persist(snap *Snapshot) {
	if s.sink == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("encode health snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.sink.SetHealth(ctx, data); err != nil {
		s.logger.Warn("persist health snapshot", "error", err)
	}
}
