package mcp

import (
	"context"
	"errors"

	"github.com/axyra/membership/adapter/cli"
	"github.com/felixgeelhaar/mcp-go"
)

func registerCoreTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("cli.health").
		Description("Check CLI wiring health and dependency status").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			if app == nil {
				return nil, errors.New("app not initialized")
			}
			result := map[string]string{"status": "ok"}
			if app.Health != nil {
				health := app.Health.GetOverallHealth(ctx)
				result["status"] = string(health.Status)
				for name, check := range health.Checks {
					result[name] = string(check.Status)
				}
			}
			return result, nil
		})

	srv.Tool("cli.version").
		Description("Get CLI version information").
		Handler(func(ctx context.Context, input struct{}) (map[string]string, error) {
			return map[string]string{
				"version":   cli.Version,
				"commit":    cli.Commit,
				"buildDate": cli.BuildDate,
			}, nil
		})

	return nil
}
