package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"payment-relay/internal/config"
	"payment-relay/internal/dispatch"
	"payment-relay/internal/health"
	"payment-relay/internal/processors"
	"payment-relay/internal/queue"
	"payment-relay/internal/server"
	"payment-relay/internal/store"
	"payment-relay/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	cleanupTracer, err := config.InitTracer(cfg.Telemetry)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer cleanupTracer()

	storeClient, err := store.NewClient(cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to create store client", "error", err)
		os.Exit(1)
	}
	defer storeClient.Close()
	if cfg.Telemetry.Enabled {
		if err := storeClient.Instrument(); err != nil {
			logger.Error("failed to instrument store client", "error", err)
			os.Exit(1)
		}
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := storeClient.Ping(pingCtx); err != nil {
		cancel()
		logger.Error("store unreachable", "url", cfg.Redis.URL, "error", err)
		os.Exit(1)
	}
	cancel()

	st := store.New(storeClient, logger)

	processorCfg := processors.Config{
		DefaultURL:      cfg.Processor.DefaultURL,
		FallbackURL:     cfg.Processor.FallbackURL,
		DefaultTimeout:  cfg.Processor.DefaultTimeout,
		FallbackTimeout: cfg.Processor.FallbackTimeout,
		MaxInflight:     cfg.Processor.MaxInflight,
	}

	// Dispatch and health probes get separate connection pools so a
	// saturated dispatch path never starves the sampler.
	dispatchHTTP := setupHTTPClient(cfg)
	probeHTTP := &http.Client{}

	upstream := processors.NewClient(processorCfg, dispatchHTTP)
	probe := processors.NewClient(processorCfg, probeHTTP)

	sampler := health.NewSampler(probe, st, logger, cfg.Health.Interval)
	sampler.Start()

	q := queue.New()
	dispatcher := dispatch.New(upstream, st, sampler, logger, dispatch.Config{
		MaxAttempts:        cfg.Dispatch.MaxAttempts,
		RetryDelay:         cfg.Dispatch.RetryDelay,
		SkipFailingDefault: cfg.Dispatch.SkipFailingDefault,
	})
	pool := workers.NewPool(cfg.Dispatch.Workers, q, dispatcher, logger)
	pool.Start()

	srv := server.New(cfg, st, q, pool, sampler, logger)
	httpServer := srv.HTTPServer()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()
	logger.Info("payment relay listening",
		"addr", httpServer.Addr,
		"workers", cfg.Dispatch.Workers,
		"default", cfg.Processor.DefaultURL,
		"fallback", cfg.Processor.FallbackURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	srv.Shutdown()
	dispatchHTTP.CloseIdleConnections()
	probeHTTP.CloseIdleConnections()
	logger.Info("bye")
}

func setupLogger(cfg *config.AppConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Telemetry.Enabled {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// setupHTTPClient builds the pool shared by all dispatch workers.
// Timeouts are enforced per attempt by the upstream client, not here.
func setupHTTPClient(cfg *config.AppConfig) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     60 * time.Second,
	}
	var rt http.RoundTripper = transport
	if cfg.Telemetry.Enabled {
		rt = otelhttp.NewTransport(transport)
	}
	return &http.Client{Transport: rt}
}
