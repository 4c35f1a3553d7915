package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"payment-relay/internal/models"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if s.cfg.Telemetry.Enabled {
		e.Use(otelecho.Middleware(s.cfg.Telemetry.ServiceName))
	}

	e.POST("/payments", s.createPaymentHandler)
	e.GET("/payments-summary", s.paymentsSummaryHandler)
	e.POST("/purge-payments", s.purgePaymentsHandler)
	e.GET("/healthz", s.healthzHandler)

	return e
}

// createPaymentHandler enqueues the request and returns before any
// upstream is contacted.
func (s *Server) createPaymentHandler(c echo.Context) error {
	var req models.PaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.CorrelationID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "correlationId is required"})
	}
	if req.Amount <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "amount must be greater than 0"})
	}

	s.queue.Push(&req)
	return c.JSON(http.StatusCreated, map[string]string{"msg": "payment created"})
}

// paymentsSummaryHandler aggregates both processor indexes over the
// requested window. Records are indexed by the time dispatch began, so
// the window filters on processing time, not submission time.
func (s *Server) paymentsSummaryHandler(c echo.Context) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := c.QueryParam("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid from: expected an RFC-3339 timestamp"})
		}
		from = parsed
	}
	if v := c.QueryParam("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid to: expected an RFC-3339 timestamp"})
		}
		to = parsed
	}

	summary, err := s.store.Summarize(c.Request().Context(), from, to)
	if err != nil {
		s.logger.Error("summary query failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to compute summary"})
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) purgePaymentsHandler(c echo.Context) error {
	if err := s.store.PurgeAll(c.Request().Context()); err != nil {
		s.logger.Error("purge failed", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"msg": "payments purged"})
}

func (s *Server) healthzHandler(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "up"})
}
