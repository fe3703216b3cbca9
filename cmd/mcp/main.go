package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/cafe-support-assistant/internal/adapters/mcp"
	"github.com/kirillkom/cafe-support-assistant/internal/bootstrap"
	"github.com/kirillkom/cafe-support-assistant/internal/config"
	"github.com/kirillkom/cafe-support-assistant/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewServing(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	go app.RunSessionJanitor(ctx, logger)

	server := mcpadapter.NewServer(app.Assistant, app.Retriever, logger)
	logger.Info("mcp_serving_stdio", "index", cfg.IndexName)
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
