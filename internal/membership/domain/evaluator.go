package domain

import (
	"fmt"
	"math"
)

// Evaluator answers entitlement questions against a catalog. It performs no I/O.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator. A nil catalog uses DefaultCatalog.
func NewEvaluator(catalog *Catalog) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

// Catalog returns the catalog decisions are made against.
func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

// EffectivePlan resolves the plan used for decisions.
func (e *Evaluator) EffectivePlan(sub *Subscription) (Plan, error) {
	if sub == nil {
		return Plan{}, fmt.Errorf("%w: subscription is required", ErrInvalidArgument)
	}
	return e.catalog.GetPlan(sub.EffectivePlanID())
}

// CanAccessModule reports whether the effective plan unlocks the module.
func (e *Evaluator) CanAccessModule(sub *Subscription, m Module) (bool, error) {
	d, err := e.CheckModule(sub, m)
	if err != nil {
		return false, err
	}
	return d.Allowed(), nil
}

// CheckModule is CanAccessModule returning a Decision with an upgrade hint.
func (e *Evaluator) CheckModule(sub *Subscription, m Module) (Decision, error) {
	if !m.IsValid() {
		return Decision{}, fmt.Errorf("%w: unknown module %q", ErrInvalidArgument, m)
	}
	plan, err := e.EffectivePlan(sub)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Kind: DecisionAllowed, Plan: plan.ID, Module: m, Limit: Unlimited()}
	if plan.HasModule(m) {
		return d, nil
	}

	d.Kind = DecisionModuleLocked
	if !sub.IsActive() {
		d.Reason = fmt.Sprintf("%s requires an active subscription (current status: %s)", m, sub.Status)
		if paid, err := e.catalog.GetPlan(sub.PlanID); err == nil && paid.HasModule(m) {
			d.UpgradeTo = paid.ID
			return d, nil
		}
	} else {
		d.Reason = fmt.Sprintf("%s is not included in the %s plan", m, plan.DisplayName)
	}
	if next, ok := e.catalog.UpgradeForModule(plan.ID, m); ok {
		d.UpgradeTo = next.ID
		d.Reason += fmt.Sprintf("; upgrade to %s to unlock it", next.DisplayName)
	}
	return d, nil
}

// CanConsume decides whether delta more units of r fit under the effective plan.
func (e *Evaluator) CanConsume(sub *Subscription, r Resource, delta float64) (Decision, error) {
	if !r.IsValid() {
		return Decision{}, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgument, r)
	}
	if delta < 0 || math.IsNaN(delta) || math.IsInf(delta, 0) {
		return Decision{}, fmt.Errorf("%w: delta must be a non-negative number, got %v", ErrInvalidArgument, delta)
	}
	plan, err := e.EffectivePlan(sub)
	if err != nil {
		return Decision{}, err
	}

	current := sub.UsageOf(r)
	limit := plan.Limit(r)
	d := Decision{
		Kind:      DecisionAllowed,
		Plan:      plan.ID,
		Resource:  r,
		Limit:     limit,
		Current:   current,
		Requested: delta,
	}
	if limit.Allows(current + delta) {
		return d, nil
	}

	d.Kind = DecisionLimitReached
	d.Reason = fmt.Sprintf("%s limit reached on the %s plan (%s/%s)",
		r.Label(), plan.DisplayName, formatAmount(current), limit)
	if next, ok := e.catalog.UpgradeFor(plan.ID, r, current+delta); ok {
		d.UpgradeTo = next.ID
		d.Reason += fmt.Sprintf("; upgrade to %s for more", next.DisplayName)
	}
	return d, nil
}

// UsagePercentage returns usage as a percentage of the limit in [0, 100].
// Unlimited resources report 0. A zero limit reports 100 once anything is used.
func (e *Evaluator) UsagePercentage(sub *Subscription, r Resource) (float64, error) {
	if !r.IsValid() {
		return 0, fmt.Errorf("%w: unknown resource %q", ErrInvalidArgument, r)
	}
	plan, err := e.EffectivePlan(sub)
	if err != nil {
		return 0, err
	}
	return Percentage(sub.UsageOf(r), plan.Limit(r)), nil
}

// Percentage computes min(100, 100*used/limit) with the unlimited and zero cases.
func Percentage(used float64, limit Limit) float64 {
	max, ok := limit.Value()
	if !ok || used <= 0 {
		return 0
	}
	if max == 0 {
		return 100
	}
	return math.Min(100, 100*used/float64(max))
}

func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
