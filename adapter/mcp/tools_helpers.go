package mcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/axyra/membership/adapter/cli"
	"github.com/axyra/membership/internal/membership/domain"
)

var errNoMembership = errors.New("membership tools require database connection")

type planSummary struct {
	ID           domain.PlanID                    `json:"id"`
	DisplayName  string                           `json:"display_name"`
	MonthlyPrice int64                            `json:"monthly_price"`
	Price        string                           `json:"price"`
	Limits       map[domain.Resource]domain.Limit `json:"limits"`
	Modules      []domain.Module                  `json:"modules"`
}

func toPlanSummary(p domain.Plan) planSummary {
	limits := make(map[domain.Resource]domain.Limit, len(domain.AllResources))
	for _, r := range domain.AllResources {
		limits[r] = p.Limit(r)
	}
	return planSummary{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		MonthlyPrice: p.MonthlyPrice,
		Price:        cli.FormatPrice(p.MonthlyPrice),
		Limits:       limits,
		Modules:      p.Modules,
	}
}

type subscriptionSummary struct {
	UserID         string                      `json:"user_id"`
	Plan           domain.PlanID               `json:"plan"`
	EffectivePlan  domain.PlanID               `json:"effective_plan"`
	Status         domain.SubscriptionStatus   `json:"status"`
	Usage          map[domain.Resource]float64 `json:"usage"`
	UsageUpdatedAt string                      `json:"usage_updated_at,omitempty"`
	PlanChangedAt  string                      `json:"plan_changed_at,omitempty"`
	PeriodEnd      string                      `json:"period_end,omitempty"`
}

func toSubscriptionSummary(sub *domain.Subscription) subscriptionSummary {
	usage := make(map[domain.Resource]float64, len(domain.AllResources))
	for _, r := range domain.AllResources {
		usage[r] = sub.UsageOf(r)
	}
	return subscriptionSummary{
		UserID:         sub.UserID,
		Plan:           sub.PlanID,
		EffectivePlan:  sub.EffectivePlanID(),
		Status:         sub.Status,
		Usage:          usage,
		UsageUpdatedAt: formatTime(sub.UsageUpdatedAt),
		PlanChangedAt:  formatTime(sub.PlanChangedAt),
		PeriodEnd:      formatTime(sub.CurrentPeriodEnd),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func requireMembership(app *cli.App) error {
	if app == nil || app.Membership == nil {
		return errNoMembership
	}
	return nil
}

func resolveUser(app *cli.App, userID string) (string, error) {
	id := app.UserOrDefault(userID)
	if id == "" {
		return "", fmt.Errorf("%w: user_id is required (or set AXYRA_USER_ID)", domain.ErrNotAuthenticated)
	}
	return id, nil
}
