// Command axyra is the membership CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/adapter/cli/mcp"
	"github.com/axyra/membership/adapter/cli/membership"
	"github.com/axyra/membership/adapter/cli/plans"
	"github.com/axyra/membership/internal/app"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = observability.ServiceLogger("axyra", cfg.LogLevel, false)
	cli.SetLogger(logger)

	// Commands that need storage print a hint instead of failing when the
	// container cannot start in development.
	var cliApp *cli.App
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()
		cliApp = cli.NewApp(container.MembershipService, container.Health)
		cliApp.SetCurrentUserID(cfg.UserID)
	}

	cli.SetApp(cliApp)

	cli.AddCommand(membership.Cmd)
	cli.AddCommand(plans.Cmd)
	cli.AddCommand(mcp.Cmd)

	cli.ExecuteContext(ctx)
}
