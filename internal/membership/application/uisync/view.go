// Package uisync renders membership state into the view model shown in the
// browser and pushes it to connected tabs whenever the plan or usage changes.
package uisync

import (
	"fmt"

	"github.com/axyra/membership/internal/membership/domain"
)

// WarningPercent is the usage level at which a bar is flagged.
const WarningPercent = 80

// Bar is one usage progress bar.
type Bar struct {
	Resource  domain.Resource `json:"resource"`
	Label     string          `json:"label"`
	Used      float64         `json:"used"`
	Limit     string          `json:"limit"`
	Unlimited bool            `json:"unlimited"`
	Percent   float64         `json:"percent"`
	Warning   bool            `json:"warning"`
}

// LockedModule is a module the user cannot open, with the plan that unlocks it.
type LockedModule struct {
	Module    domain.Module `json:"module"`
	UpgradeTo domain.PlanID `json:"upgradeTo,omitempty"`
}

// UpgradePrompt is the call-to-action shown under the usage bars.
type UpgradePrompt struct {
	Plan         domain.PlanID `json:"plan"`
	DisplayName  string        `json:"displayName"`
	MonthlyPrice int64         `json:"monthlyPrice"`
	Message      string        `json:"message"`
}

// View is everything the membership widgets render for one user.
type View struct {
	UserID         string                    `json:"userId"`
	Plan           domain.PlanID             `json:"plan"`
	PlanName       string                    `json:"planName"`
	Status         domain.SubscriptionStatus `json:"status"`
	EffectivePlan  domain.PlanID             `json:"effectivePlan"`
	Bars           []Bar                     `json:"bars"`
	VisibleModules []domain.Module           `json:"visibleModules"`
	LockedModules  []LockedModule            `json:"lockedModules"`
	Upgrade        *UpgradePrompt            `json:"upgrade,omitempty"`
}

// BuildView computes the view for sub under the evaluator's catalog.
func BuildView(eval *domain.Evaluator, sub *domain.Subscription) (View, error) {
	if sub == nil {
		return View{}, domain.ErrInvalidArgument
	}

	catalog := eval.Catalog()
	stored, err := catalog.GetPlan(sub.PlanID)
	if err != nil {
		return View{}, err
	}
	effective, err := eval.EffectivePlan(sub)
	if err != nil {
		return View{}, err
	}

	view := View{
		UserID:        sub.UserID,
		Plan:          stored.ID,
		PlanName:      stored.DisplayName,
		Status:        sub.Status,
		EffectivePlan: effective.ID,
		Bars:          make([]Bar, 0, len(domain.AllResources)),
	}

	for _, r := range domain.AllResources {
		limit := effective.Limit(r)
		used := sub.UsageOf(r)
		pct := domain.Percentage(used, limit)
		view.Bars = append(view.Bars, Bar{
			Resource:  r,
			Label:     r.Label(),
			Used:      used,
			Limit:     limit.String(),
			Unlimited: limit.IsUnlimited(),
			Percent:   pct,
			Warning:   pct >= WarningPercent,
		})
	}

	for _, m := range domain.AllModules {
		d, err := eval.CheckModule(sub, m)
		if err != nil {
			return View{}, err
		}
		if d.Allowed() {
			view.VisibleModules = append(view.VisibleModules, m)
			continue
		}
		view.LockedModules = append(view.LockedModules, LockedModule{Module: m, UpgradeTo: d.UpgradeTo})
	}

	view.Upgrade = upgradePrompt(catalog, sub, stored, effective)
	return view, nil
}

func upgradePrompt(catalog *domain.Catalog, sub *domain.Subscription, stored, effective domain.Plan) *UpgradePrompt {
	if !sub.IsActive() && stored.ID != domain.PlanFree {
		return &UpgradePrompt{
			Plan:         stored.ID,
			DisplayName:  stored.DisplayName,
			MonthlyPrice: stored.MonthlyPrice,
			Message:      fmt.Sprintf("Reactivate your %s plan to restore its features", stored.DisplayName),
		}
	}

	next, ok := catalog.NextTier(effective.ID)
	if !ok {
		return nil
	}
	return &UpgradePrompt{
		Plan:         next.ID,
		DisplayName:  next.DisplayName,
		MonthlyPrice: next.MonthlyPrice,
		Message:      fmt.Sprintf("Upgrade to %s for higher limits and more modules", next.DisplayName),
	}
}
