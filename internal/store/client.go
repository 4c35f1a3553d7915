package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// Client wraps the Redis connection used for payment persistence.
type Client struct {
	rdb *redis.Client
}

// NewClient connects to the store at the given URL, e.g.
// redis://localhost:6379/0.
func NewClient(url string) (*Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{rdb: redis.NewClient(opt)}, nil
}

// Instrument enables OpenTelemetry tracing and metrics on the underlying
// connection. Call before the client is shared.
func (c *Client) Instrument() error {
	if err := redisotel.InstrumentTracing(c.rdb); err != nil {
		return fmt.Errorf("instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(c.rdb); err != nil {
		return fmt.Errorf("instrument redis metrics: %w", err)
	}
	return nil
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the store connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
