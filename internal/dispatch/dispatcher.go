package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"payment-relay/internal/health"
	"payment-relay/internal/models"
	"payment-relay/internal/processors"
)

// ErrAllProcessorsFailed signals that every attempt, fallback included,
// was rejected. The caller re-enqueues the original request.
var ErrAllProcessorsFailed = errors.New("all payment processors failed")

var tracer = otel.Tracer("dispatch")

// Indexer persists a forwarded payment.
type Indexer interface {
	IndexPayment(ctx context.Context, p *models.Payment) error
}

// HealthSource exposes the sampler's latest snapshot.
type HealthSource interface {
	Latest() *health.Snapshot
}

// Config tunes the retry/fallback policy.
type Config struct {
	// MaxAttempts is the number of tries against the default processor.
	MaxAttempts int
	// RetryDelay is the pause between default attempts. It does not apply
	// between the last default attempt and the fallback.
	RetryDelay time.Duration
	// SkipFailingDefault routes straight to the fallback when the latest
	// health sample marks the default processor failing. Off by default;
	// with it off the policy always tries default first.
	SkipFailingDefault bool
}

// Dispatcher turns one accepted payment request into at most one
// persisted payment: try default up to MaxAttempts times, then fallback
// once, and index the record under whichever processor accepted it.
type Dispatcher struct {
	client *processors.Client
	store  Indexer
	health HealthSource
	logger *slog.Logger
	cfg    Config
}

func New(client *processors.Client, store Indexer, healthSource HealthSource, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Dispatcher{
		client: client,
		store:  store,
		health: healthSource,
		logger: logger,
		cfg:    cfg,
	}
}

// Dispatch forwards one request. The requested-at timestamp is stamped
// here, when dispatch begins, and is both sent upstream and used as the
// record's index score. On total failure the request is left untouched
// for re-enqueueing; requested_at is re-stamped on the next attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, req *models.PaymentRequest) error {
	requestedAt := time.Now().UTC()
	payload := models.ProcessorPaymentRequest{
		CorrelationID: req.CorrelationID.String(),
		Amount:        req.Amount,
		RequestedAt:   requestedAt.Format(time.RFC3339Nano),
	}

	ctx, span := tracer.Start(ctx, "dispatch-payment", trace.WithAttributes(
		attribute.String("payment.correlation_id", payload.CorrelationID),
		attribute.Float64("payment.amount", req.Amount),
	))
	defer span.End()

	processor, err := d.forward(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("payment.processor", string(processor)))

	payment := &models.Payment{
		CorrelationID: payload.CorrelationID,
		Amount:        models.ToCents(req.Amount),
		RequestedAt:   requestedAt,
		Processor:     processor,
	}
	if err := d.store.IndexPayment(ctx, payment); err != nil {
		// The upstream has already accepted the money; the record is lost,
		// not the payment. Do not fail the dispatch.
		d.logger.Error("failed to index forwarded payment",
			"correlationId", payment.CorrelationID,
			"processor", processor,
			"error", err)
	}
	return nil
}

func (d *Dispatcher) forward(ctx context.Context, payload models.ProcessorPaymentRequest) (models.Processor, error) {
	if !d.skipDefault() {
		for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
			if attempt > 1 {
				select {
				case <-time.After(d.cfg.RetryDelay):
				case <-ctx.Done():
					return "", ctx.Err()
				}
			}

			err := d.client.PostPayment(ctx, models.ProcessorDefault, payload)
			if err == nil {
				return models.ProcessorDefault, nil
			}
			d.logger.Warn("default processor attempt failed",
				"correlationId", payload.CorrelationID,
				"attempt", attempt,
				"maxAttempts", d.cfg.MaxAttempts,
				"error", err)
		}
	}

	if err := d.client.PostPayment(ctx, models.ProcessorFallback, payload); err != nil {
		d.logger.Error("fallback processor failed",
			"correlationId", payload.CorrelationID,
			"error", err)
		return "", ErrAllProcessorsFailed
	}
	return models.ProcessorFallback, nil
}

func (d *Dispatcher) skipDefault() bool {
	if !d.cfg.SkipFailingDefault || d.health == nil {
		return false
	}
	snap := d.health.Latest()
	return snap != nil && snap.Default.Failing
}
