package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/bootstrap"
	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/observability/logging"
	"github.com/kirillkom/cafe-support-assistant/internal/observability/metrics"
)

const (
	serviceName  = "worker"
	buildTimeout = 10 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIndexing(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	queue, err := bootstrap.NewQueue(cfg, logger)
	if err != nil {
		logger.Error("queue_connect_failed", "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	m := metrics.NewIndexMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSReindexSubject)
	err = queue.SubscribeReindex(ctx, func(handlerCtx context.Context, req domain.ReindexRequest) error {
		if !req.CreatedAt.IsZero() {
			m.ObserveQueueLag(serviceName, time.Since(req.CreatedAt))
		}
		buildCtx, cancel := context.WithTimeout(handlerCtx, buildTimeout)
		defer cancel()

		m.StartBuild()
		started := time.Now()
		n, err := app.Builder.Build(buildCtx, req.Path, req.IndexName)
		m.FinishBuild(serviceName, req.IndexName, n, time.Since(started), err)
		if err != nil {
			return err
		}
		logger.Info("index_built", "index", req.IndexName, "path", req.Path, "chunks", n)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
