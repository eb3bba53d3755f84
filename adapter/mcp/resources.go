package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/axyra/membership/internal/membership/application/uisync"
	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources registers MCP resources that expose membership data.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	app := deps.App

	srv.Resource("axyra://plans").
		Name("Plans").
		Description("Plan catalog with prices, limits and modules").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			plans := app.Membership.ListPlans(ctx)
			out := make([]planSummary, 0, len(plans))
			for _, p := range plans {
				out = append(out, toPlanSummary(p))
			}
			return jsonResource(uri, out)
		})

	srv.Resource("axyra://membership/current").
		Name("Current membership").
		Description("Plan, usage bars and upgrade suggestion for the configured user").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			userID, err := resolveUser(app, "")
			if err != nil {
				return nil, err
			}
			sub, err := app.Membership.GetSubscription(ctx, userID)
			if err != nil {
				return nil, err
			}
			view, err := uisync.BuildView(app.Membership.Evaluator(ctx), sub)
			if err != nil {
				return nil, err
			}
			return jsonResource(uri, view)
		})

	srv.Resource("axyra://health").
		Name("Health").
		Description("Storage, cache and broker health checks").
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			if app == nil || app.Health == nil {
				return nil, fmt.Errorf("health registry not configured")
			}
			return jsonResource(uri, app.Health.GetOverallHealth(ctx))
		})

	return nil
}

func jsonResource(uri string, v any) (*mcp.ResourceContent, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ResourceContent{
		URI:      uri,
		MimeType: "application/json",
		Text:     string(data),
	}, nil
}
