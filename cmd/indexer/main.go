package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/cafe-support-assistant/internal/adapters/cli"
	"github.com/kirillkom/cafe-support-assistant/internal/bootstrap"
	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
	"github.com/kirillkom/cafe-support-assistant/internal/core/ports"
	"github.com/kirillkom/cafe-support-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, "indexer", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetServices(cli.Services{
		Formatter: func(dataDir string) (ports.DocumentFormatter, error) {
			c := cfg
			c.DataDir = dataDir
			return bootstrap.NewFormatter(c, logger)
		},
		Builder: func(ctx context.Context) (ports.IndexBuilder, func(), error) {
			app, err := bootstrap.NewIndexing(ctx, cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return app.Builder, app.Close, nil
		},
		Publisher: func() (cli.ReindexPublisher, func(), error) {
			queue, err := bootstrap.NewQueue(cfg, logger)
			if err != nil {
				return nil, nil, err
			}
			return queue, queue.Close, nil
		},
		Manifest: func(path string) ([]domain.Dataset, error) {
			if path == "" {
				path = cfg.ManifestPath
			}
			return config.LoadManifest(path)
		},
		DataDir:          cfg.DataDir,
		ProcessedPath:    bootstrap.ProcessedPath(cfg),
		DefaultIndexName: cfg.IndexName,
	})

	if err := cli.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
