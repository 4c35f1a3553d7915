package processors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"payment-relay/internal/models"
)

// StatusError reports an upstream reply with any status other than 200.
// 200 is the sole success criterion; other 2xx codes fail too.
type StatusError struct {
	Processor models.Processor
	Code      int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s processor returned status %d", e.Processor, e.Code)
}

// Config holds the upstream endpoints and per-processor timeouts.
type Config struct {
	DefaultURL      string
	FallbackURL     string
	DefaultTimeout  time.Duration
	FallbackTimeout time.Duration

	// MaxInflight bounds simultaneous upstream calls across every caller
	// sharing this client.
	MaxInflight int64
}

// Client posts payments and health probes to the upstream processors.
// One HTTP connection pool is shared by all callers; the health sampler
// gets its own Client over a separate pool so probes never contend with
// dispatch.
type Client struct {
	httpClient *http.Client
	sem        *semaphore.Weighted
	urls       map[models.Processor]string
	timeouts   map[models.Processor]time.Duration
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 64
	}
	return &Client{
		httpClient: httpClient,
		sem:        semaphore.NewWeighted(cfg.MaxInflight),
		urls: map[models.Processor]string{
			models.ProcessorDefault:  cfg.DefaultURL,
			models.ProcessorFallback: cfg.FallbackURL,
		},
		timeouts: map[models.Processor]time.Duration{
			models.ProcessorDefault:  cfg.DefaultTimeout,
			models.ProcessorFallback: cfg.FallbackTimeout,
		},
	}
}

// PostPayment submits one payment to the given processor. A hung upstream
// is cut off at the processor's timeout and surfaces as a transport
// error. The call holds one slot of the shared in-flight semaphore for
// its duration.
func (c *Client) PostPayment(ctx context.Context, p models.Processor, payload models.ProcessorPaymentRequest) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire upstream slot: %w", err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeouts[p])
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode processor payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.urls[p]+"/payments", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post payment to %s processor: %w", p, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Processor: p, Code: resp.StatusCode}
	}
	return nil
}

// CheckHealth probes the processor's service-health endpoint. Probes
// bypass the in-flight semaphore.
func (c *Client) CheckHealth(ctx context.Context, p models.Processor) (*models.ProcessorHealth, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.urls[p]+"/payments/service-health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s processor: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Processor: p, Code: resp.StatusCode}
	}

	var health models.ProcessorHealth
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode %s health response: %w", p, err)
	}
	return &health, nil
}
