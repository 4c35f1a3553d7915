package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-relay/internal/models"
)

const (
	// Per-processor sorted sets; members are the encoded payment records
	// themselves, scores are requested_at epoch seconds.
	indexKeyPrefix = "payments_index:"

	// Per-payment record keyed by correlation ID.
	recordKeyPrefix = "payment:"

	// Per-processor append-only list of records in dispatch order.
	listKeyPrefix = "payments:"

	// Single slot holding the latest health sample.
	healthKey = "payment_processor_health"
)

// Store persists forwarded payments in per-processor time indexes and
// answers range-scan summary queries over them.
type Store struct {
	client *Client
	logger *slog.Logger
}

func New(client *Client, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// IndexedRecord is one member of a processor's time index.
type IndexedRecord struct {
	Record []byte
	Score  float64
}

// Score converts a timestamp to its index score: epoch seconds with
// millisecond resolution.
func Score(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1e3
}

// IndexPayment writes a forwarded payment in a single pipelined round
// trip: the record under payment:<correlationID>, the time-index entry
// under the processor's sorted set, and an append to the processor's
// dispatch-order list. Byte-identical index members coalesce, which is
// acceptable since correlation ID and requested_at together make exact
// duplicates vanishingly rare.
func (s *Store) IndexPayment(ctx context.Context, p *models.Payment) error {
	record, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payment record: %w", err)
	}

	pipe := s.client.rdb.Pipeline()
	pipe.Set(ctx, recordKeyPrefix+p.CorrelationID, record, 0)
	pipe.ZAdd(ctx, indexKeyPrefix+string(p.Processor), redis.Z{
		Score:  Score(p.RequestedAt),
		Member: record,
	})
	pipe.RPush(ctx, listKeyPrefix+string(p.Processor), record)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index payment %s: %w", p.CorrelationID, err)
	}
	return nil
}

// RangeByScore returns the processor's indexed records with scores in
// [from, to], both ends inclusive.
func (s *Store) RangeByScore(ctx context.Context, p models.Processor, from, to float64) ([]IndexedRecord, error) {
	zs, err := s.client.rdb.ZRangeByScoreWithScores(ctx, indexKeyPrefix+string(p), &redis.ZRangeBy{
		Min: strconv.FormatFloat(from, 'f', -1, 64),
		Max: strconv.FormatFloat(to, 'f', -1, 64),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range scan %s index: %w", p, err)
	}

	records := make([]IndexedRecord, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		records = append(records, IndexedRecord{
			Record: []byte(member),
			Score:  z.Score,
		})
	}
	return records, nil
}

// Summarize range-scans both processor indexes over [from, to] and sums
// the decoded records. Records that fail to decode are skipped and not
// counted.
func (s *Store) Summarize(ctx context.Context, from, to time.Time) (*models.Summary, error) {
	summary := &models.Summary{}
	for _, p := range models.Processors() {
		records, err := s.RangeByScore(ctx, p, Score(from), Score(to))
		if err != nil {
			return nil, err
		}

		var requests, cents int64
		for _, r := range records {
			var payment models.Payment
			if err := json.Unmarshal(r.Record, &payment); err != nil {
				s.logger.Warn("skipping undecodable payment record", "processor", p, "error", err)
				continue
			}
			requests++
			cents += payment.Amount
		}

		ps := models.ProcessorSummary{
			TotalRequests: requests,
			TotalAmount:   models.FromCents(cents),
		}
		if p == models.ProcessorDefault {
			summary.Default = ps
		} else {
			summary.Fallback = ps
		}
	}
	return summary, nil
}

// PurgeAll removes every key in the store, the health slot included. The
// sampler rewrites the slot within one interval.
func (s *Store) PurgeAll(ctx context.Context) error {
	if err := s.client.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("purge store: %w", err)
	}
	return nil
}

// GetHealth returns the latest persisted health sample, or nil if none
// has been written yet.
func (s *Store) GetHealth(ctx context.Context) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, healthKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read health slot: %w", err)
	}
	return data, nil
}

// SetHealth overwrites the persisted health sample.
func (s *Store) SetHealth(ctx context.Context, data []byte) error {
	if err := s.client.rdb.Set(ctx, healthKey, data, 0).Err(); err != nil {
		return fmt.Errorf("write health slot: %w", err)
	}
	return nil
}

// Ping checks connectivity of the underlying client.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
