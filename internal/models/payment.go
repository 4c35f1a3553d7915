package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Processor identifies one of the two upstream payment processors.
type Processor string

const (
	ProcessorDefault  Processor = "default"
	ProcessorFallback Processor = "fallback"
)

// Processors returns both processors in summary order.
func Processors() [2]Processor {
	return [2]Processor{ProcessorDefault, ProcessorFallback}
}

// PaymentRequest is the client submission accepted on POST /payments.
// The correlation ID is the client's idempotency handle; the relay does
// not deduplicate on it.
type PaymentRequest struct {
	CorrelationID uuid.UUID `json:"correlationId"`
	Amount        float64   `json:"amount"`
}

// Payment is the persisted record of a successfully forwarded payment.
// Field names are snake_case per the storage contract; the amount is an
// integer number of cents so sums stay exact.
type Payment struct {
	CorrelationID string    `json:"correlation_id"`
	Amount        int64     `json:"amount"`
	RequestedAt   time.Time `json:"requested_at"`
	Processor     Processor `json:"payment_processor"`
}

// ProcessorPaymentRequest is the wire payload sent to an upstream
// processor's POST /payments endpoint.
type ProcessorPaymentRequest struct {
	CorrelationID string  `json:"correlationId"`
	Amount        float64 `json:"amount"`
	RequestedAt   string  `json:"requestedAt"`
}

// ProcessorHealth mirrors the upstream GET /payments/service-health body.
type ProcessorHealth struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"minResponseTime"`
}

// ProcessorSummary aggregates persisted payments for one processor.
type ProcessorSummary struct {
	TotalRequests int64   `json:"totalRequests"`
	TotalAmount   float64 `json:"totalAmount"`
}

// Summary is the GET /payments-summary response body.
type Summary struct {
	Default  ProcessorSummary `json:"default"`
	Fallback ProcessorSummary `json:"fallback"`
}

// ToCents converts a major-unit amount to cents, rounding half away
// from zero.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts cents back to major units with two decimal places.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
