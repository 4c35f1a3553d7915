package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-relay/internal/config"
	"payment-relay/internal/models"
	"payment-relay/internal/queue"
)

type fakeStorage struct {
	summary    *models.Summary
	summarize  error
	purge      error
	ping       error
	gotFrom    time.Time
	gotTo      time.Time
	purgeCalls int
}

func (f *fakeStorage) Summarize(_ context.Context, from, to time.Time) (*models.Summary, error) {
	f.gotFrom, f.gotTo = from, to
	if f.summarize != nil {
		return nil, f.summarize
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return &models.Summary{}, nil
}

func (f *fakeStorage) PurgeAll(context.Context) error {
	f.purgeCalls++
	return f.purge
}

func (f *fakeStorage) Ping(context.Context) error { return f.ping }

func newTestServer(store *fakeStorage) (*Server, *queue.Queue) {
	q := queue.New()
	cfg := &config.AppConfig{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, store, q, nil, nil, logger), q
}

func doRequest(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.RegisterRoutes().ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentEnqueuesAndReturns201(t *testing.T) {
	srv, q := newTestServer(&fakeStorage{})

	rec := doRequest(srv, http.MethodPost, "/payments",
		`{"correlationId":"4a7901b8-7d0d-4e1c-ba96-c458c1d7d028","amount":19.90}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"msg":"payment created"}`, rec.Body.String())

	require.Equal(t, 1, q.Len())
	req := q.Pop()
	assert.Equal(t, "4a7901b8-7d0d-4e1c-ba96-c458c1d7d028", req.CorrelationID.String())
	assert.Equal(t, 19.90, req.Amount)
}

func TestCreatePaymentRejectsMissingCorrelationID(t *testing.T) {
	srv, q := newTestServer(&fakeStorage{})

	rec := doRequest(srv, http.MethodPost, "/payments", `{"amount":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
	assert.Equal(t, 0, q.Len())
}

func TestCreatePaymentRejectsBadPayloads(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"correlationId":`,
		"bad uuid":         `{"correlationId":"nope","amount":1}`,
		"zero amount":      `{"correlationId":"4a7901b8-7d0d-4e1c-ba96-c458c1d7d028","amount":0}`,
		"negative amount":  `{"correlationId":"4a7901b8-7d0d-4e1c-ba96-c458c1d7d028","amount":-3}`,
		"amount not a num": `{"correlationId":"4a7901b8-7d0d-4e1c-ba96-c458c1d7d028","amount":"x"}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv, q := newTestServer(&fakeStorage{})
			rec := doRequest(srv, http.MethodPost, "/payments", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, q.Len())
		})
	}
}

func TestSummaryReturnsStoreAggregates(t *testing.T) {
	store := &fakeStorage{summary: &models.Summary{
		Default:  models.ProcessorSummary{TotalRequests: 3, TotalAmount: 59.70},
		Fallback: models.ProcessorSummary{TotalRequests: 1, TotalAmount: 10.00},
	}}
	srv, _ := newTestServer(store)

	rec := doRequest(srv, http.MethodGet,
		"/payments-summary?from=2025-07-10T12:00:00Z&to=2025-07-10T13:00:00Z", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"default":{"totalRequests":3,"totalAmount":59.7},"fallback":{"totalRequests":1,"totalAmount":10}}`,
		rec.Body.String())
	assert.Equal(t, time.Date(2025, 7, 10, 12, 0, 0, 0, time.UTC), store.gotFrom.UTC())
	assert.Equal(t, time.Date(2025, 7, 10, 13, 0, 0, 0, time.UTC), store.gotTo.UTC())
}

func TestSummaryDefaultsToTrailing30Days(t *testing.T) {
	store := &fakeStorage{}
	srv, _ := newTestServer(store)

	before := time.Now().UTC()
	rec := doRequest(srv, http.MethodGet, "/payments-summary", "")
	after := time.Now().UTC()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.WithinRange(t, store.gotTo, before, after)
	assert.WithinRange(t, store.gotFrom, before.AddDate(0, 0, -30), after.AddDate(0, 0, -30))
}

func TestSummaryRejectsMalformedDates(t *testing.T) {
	srv, _ := newTestServer(&fakeStorage{})

	for _, target := range []string{
		"/payments-summary?from=yesterday",
		"/payments-summary?to=2025-13-45",
	} {
		rec := doRequest(srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestSummaryStoreFailure(t *testing.T) {
	srv, _ := newTestServer(&fakeStorage{summarize: assert.AnError})
	rec := doRequest(srv, http.MethodGet, "/payments-summary", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPurgePayments(t *testing.T) {
	store := &fakeStorage{}
	srv, _ := newTestServer(store)

	rec := doRequest(srv, http.MethodPost, "/purge-payments", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"msg":"payments purged"}`, rec.Body.String())
	assert.Equal(t, 1, store.purgeCalls)
}

func TestPurgePaymentsStoreFailure(t *testing.T) {
	srv, _ := newTestServer(&fakeStorage{purge: assert.AnError})
	rec := doRequest(srv, http.MethodPost, "/purge-payments", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(&fakeStorage{})
	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	srv, _ = newTestServer(&fakeStorage{ping: assert.AnError})
	rec = doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
