package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers MCP prompts for common membership workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("plan_advisor").
		Description("Review current usage against plan limits and recommend whether to change plan.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Plan Advisor",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me decide whether my company is on the right AXYRA plan. Please:

1. Refresh usage with the membership.refresh tool
2. Read my membership from the axyra://membership/current resource
3. Compare it with the catalog in the axyra://plans resource

Then:
- Point out every resource at or above 80% of its limit
- List modules I cannot open on my current plan
- Recommend the cheapest plan that covers my usage, with its monthly price
- Warn me if a downgrade would leave usage above the new limits

Use membership.upgrade only after I confirm.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("limit_reached").
		Description("Explain a blocked action and the plan that would allow it.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			resource := args["resource"]
			if resource == "" {
				resource = "employees"
			}
			return &mcp.PromptResult{
				Description: "Limit Reached",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`I was blocked from adding more %s. Please:

1. Call membership.can_consume with resource "%s" to see the current count and limit
2. Call membership.usage_percentage for the same resource
3. If an upgrade is suggested, show its price with plans.show

Explain in one short paragraph why I was blocked and what it would cost to continue.`, resource, resource),
						},
					},
				},
			}, nil
		})

	return nil
}
