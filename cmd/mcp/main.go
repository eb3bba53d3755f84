// Command mcp serves the membership tools over the Model Context Protocol.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/axyra/membership/internal/app"
	mcpinternal "github.com/axyra/membership/internal/mcp"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("mcp server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.ServiceLogger(mcpinternal.ServerName, cfg.LogLevel, cfg.IsProduction())

	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize container: %w", err)
	}
	defer container.Close()

	if cfg.UserID == "" {
		logger.Warn("AXYRA_USER_ID not set; tools need an explicit user_id")
	}
	return mcpinternal.Serve(ctx, cfg, mcpinternal.NewCLIApp(container, cfg.UserID), logger)
}
