package mcp

import (
	"context"
	"errors"

	"github.com/axyra/membership/internal/membership/application/uisync"
	"github.com/axyra/membership/internal/membership/domain"
	"github.com/felixgeelhaar/mcp-go"
)

type userInput struct {
	UserID string `json:"user_id,omitempty"`
}

type moduleInput struct {
	UserID string `json:"user_id,omitempty"`
	Module string `json:"module" jsonschema:"required"`
}

type consumeInput struct {
	UserID   string  `json:"user_id,omitempty"`
	Resource string  `json:"resource" jsonschema:"required"`
	Amount   float64 `json:"amount,omitempty"`
}

type resourceInput struct {
	UserID   string `json:"user_id,omitempty"`
	Resource string `json:"resource" jsonschema:"required"`
}

type refreshInput struct {
	UserID string `json:"user_id,omitempty"`
	All    bool   `json:"all,omitempty"`
}

type upgradeInput struct {
	UserID string `json:"user_id,omitempty"`
	Plan   string `json:"plan" jsonschema:"required"`
}

type statusInput struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status" jsonschema:"required"`
}

type planInput struct {
	Plan string `json:"plan" jsonschema:"required"`
}

func registerMembershipTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("membership.sign_in").
		Description("Load a user's membership, creating a free subscription on first sign-in").
		Handler(func(ctx context.Context, input userInput) (subscriptionSummary, error) {
			if err := requireMembership(app); err != nil {
				return subscriptionSummary{}, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return subscriptionSummary{}, err
			}
			sub, err := app.Membership.SignIn(ctx, userID)
			if err != nil {
				return subscriptionSummary{}, err
			}
			return toSubscriptionSummary(sub), nil
		})

	srv.Tool("membership.status").
		Description("Show plan, usage bars, visible modules and upgrade suggestion for a user").
		Handler(func(ctx context.Context, input userInput) (uisync.View, error) {
			if err := requireMembership(app); err != nil {
				return uisync.View{}, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return uisync.View{}, err
			}
			sub, err := app.Membership.GetSubscription(ctx, userID)
			if err != nil {
				return uisync.View{}, err
			}
			return uisync.BuildView(app.Membership.Evaluator(ctx), sub)
		})

	srv.Tool("membership.check_module").
		Description("Check whether a user's plan includes a module").
		Handler(func(ctx context.Context, input moduleInput) (map[string]any, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return nil, err
			}
			module, err := domain.ParseModule(input.Module)
			if err != nil {
				return nil, err
			}
			decision, err := app.Membership.CheckModule(ctx, userID, module)
			if err != nil {
				return nil, err
			}
			return decisionResult(decision), nil
		})

	srv.Tool("membership.can_consume").
		Description("Check whether a user may consume more of a metered resource").
		Handler(func(ctx context.Context, input consumeInput) (map[string]any, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return nil, err
			}
			resource, err := domain.ParseResource(input.Resource)
			if err != nil {
				return nil, err
			}
			amount := input.Amount
			if amount == 0 {
				amount = 1
			}
			decision, err := app.Membership.CanConsume(ctx, userID, resource, amount)
			if err != nil {
				return nil, err
			}
			return decisionResult(decision), nil
		})

	srv.Tool("membership.usage_percentage").
		Description("Get how much of a resource limit a user has used, from 0 to 100").
		Handler(func(ctx context.Context, input resourceInput) (map[string]any, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return nil, err
			}
			resource, err := domain.ParseResource(input.Resource)
			if err != nil {
				return nil, err
			}
			pct, err := app.Membership.UsagePercentage(ctx, userID, resource)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"user_id":  userID,
				"resource": resource,
				"percent":  pct,
				"warning":  pct >= uisync.WarningPercent,
			}, nil
		})

	srv.Tool("membership.refresh").
		Description("Recount employees, payroll runs and storage from the document store").
		Handler(func(ctx context.Context, input refreshInput) (map[string]any, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			if input.All {
				n, err := app.Membership.RefreshAll(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"refreshed": n}, nil
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return nil, err
			}
			sub, snapshot, err := app.Membership.RefreshUsage(ctx, userID)
			if err != nil {
				return nil, err
			}
			result := map[string]any{
				"subscription": toSubscriptionSummary(sub),
				"refreshed_at": formatTime(snapshot.RefreshedAt),
			}
			if len(snapshot.Failed) > 0 {
				result["failed"] = snapshot.Failed
			}
			return result, nil
		})

	srv.Tool("membership.upgrade").
		Description("Move a user to another plan and reactivate the subscription").
		Handler(func(ctx context.Context, input upgradeInput) (subscriptionSummary, error) {
			if err := requireMembership(app); err != nil {
				return subscriptionSummary{}, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return subscriptionSummary{}, err
			}
			planID, err := domain.ParsePlanID(input.Plan)
			if err != nil {
				return subscriptionSummary{}, err
			}
			sub, err := app.Membership.Upgrade(ctx, userID, planID)
			if err != nil {
				return subscriptionSummary{}, err
			}
			return toSubscriptionSummary(sub), nil
		})

	srv.Tool("membership.set_status").
		Description("Set a subscription's status: active, past_due or canceled").
		Handler(func(ctx context.Context, input statusInput) (subscriptionSummary, error) {
			if err := requireMembership(app); err != nil {
				return subscriptionSummary{}, err
			}
			userID, err := resolveUser(app, input.UserID)
			if err != nil {
				return subscriptionSummary{}, err
			}
			status, err := domain.ParseSubscriptionStatus(input.Status)
			if err != nil {
				return subscriptionSummary{}, err
			}
			sub, err := app.Membership.ChangeStatus(ctx, userID, status)
			if err != nil {
				return subscriptionSummary{}, err
			}
			return toSubscriptionSummary(sub), nil
		})

	srv.Tool("membership.stats").
		Description("Count subscriptions by status and plan, including paid periods that have ended").
		Handler(func(ctx context.Context, input struct{}) (domain.SubscriptionStats, error) {
			if err := requireMembership(app); err != nil {
				return domain.SubscriptionStats{}, err
			}
			return app.Membership.SubscriptionStats(ctx)
		})

	return nil
}

func registerPlanTools(srv *mcp.Server, deps ToolDependencies) error {
	app := deps.App

	srv.Tool("plans.list").
		Description("List plans ordered by monthly price").
		Handler(func(ctx context.Context, input struct{}) ([]planSummary, error) {
			if err := requireMembership(app); err != nil {
				return nil, err
			}
			plans := app.Membership.ListPlans(ctx)
			out := make([]planSummary, 0, len(plans))
			for _, p := range plans {
				out = append(out, toPlanSummary(p))
			}
			return out, nil
		})

	srv.Tool("plans.show").
		Description("Show one plan's price, limits and modules").
		Handler(func(ctx context.Context, input planInput) (planSummary, error) {
			if err := requireMembership(app); err != nil {
				return planSummary{}, err
			}
			if input.Plan == "" {
				return planSummary{}, errors.New("plan is required")
			}
			plan, err := app.Membership.Catalog(ctx).GetPlan(domain.PlanID(input.Plan))
			if err != nil {
				return planSummary{}, err
			}
			return toPlanSummary(plan), nil
		})

	return nil
}

func decisionResult(d domain.Decision) map[string]any {
	result := map[string]any{
		"allowed": d.Allowed(),
		"kind":    d.Kind,
		"plan":    d.Plan,
	}
	if d.Resource != "" {
		result["resource"] = d.Resource
		result["limit"] = d.Limit.String()
		result["current"] = d.Current
		result["remaining"] = d.Remaining()
	}
	if d.Module != "" {
		result["module"] = d.Module
	}
	if d.Reason != "" {
		result["reason"] = d.Reason
	}
	if d.UpgradeTo != "" {
		result["upgrade_to"] = d.UpgradeTo
	}
	return result
}
