package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/app"
	mcpinternal "github.com/axyra/membership/internal/mcp"
	"github.com/axyra/membership/pkg/config"
	"github.com/axyra/membership/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Serve the membership tools, resources and prompts over HTTP on MCP_ADDR.

Set MCP_AUTH_TOKEN to require a bearer token and AXYRA_USER_ID to pick
the user tools act on when a call omits user_id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger := observability.NewLogger(observability.LogConfig{
			Level:       observability.LogLevel(cfg.LogLevel),
			Format:      observability.LogFormatText,
			Output:      cmd.ErrOrStderr(),
			ServiceName: mcpinternal.ServerName,
		})

		cliApp, closeApp, err := serverApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeApp()

		if err := mcpinternal.Serve(ctx, cfg, cliApp, logger); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// serverApp reuses the CLI's app when the root command opened one and
// otherwise builds a dedicated container.
func serverApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*cli.App, func(), error) {
	if existing := cli.GetApp(); existing != nil && existing.Membership != nil {
		return existing, func() {}, nil
	}
	container, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return mcpinternal.NewCLIApp(container, cfg.UserID), container.Close, nil
}
