package domain

import (
	"fmt"
	"sort"
)

// Catalog holds the plan definitions. A Catalog is never mutated after
// construction; overrides produce a new Catalog.
type Catalog struct {
	plans map[PlanID]Plan
	order []PlanID
}

// DefaultPlans returns the built-in plan table.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:           PlanFree,
			DisplayName:  "Free",
			MonthlyPrice: 0,
			Limits: map[Resource]Limit{
				ResourceEmployees:   Max(5),
				ResourcePayrollRuns: Max(10),
				ResourceStorageMB:   Max(100),
			},
			Modules: []Module{ModuleDashboard, ModuleEmployeesBasic, ModulePayrollBasic},
		},
		{
			ID:           PlanBasic,
			DisplayName:  "Basic",
			MonthlyPrice: 50000,
			Limits: map[Resource]Limit{
				ResourceEmployees:   Max(25),
				ResourcePayrollRuns: Max(50),
				ResourceStorageMB:   Max(500),
			},
			Modules: []Module{ModuleDashboard, ModuleEmployees, ModulePayroll, ModuleReportsBasic},
		},
		{
			ID:           PlanProfessional,
			DisplayName:  "Professional",
			MonthlyPrice: 150000,
			Limits: map[Resource]Limit{
				ResourceEmployees:   Max(100),
				ResourcePayrollRuns: Max(200),
				ResourceStorageMB:   Max(2000),
			},
			Modules: []Module{
				ModuleDashboard, ModuleEmployees, ModulePayroll,
				ModuleInventory, ModuleCashRegister, ModuleReports, ModuleIntegrations,
			},
		},
		{
			ID:           PlanEnterprise,
			DisplayName:  "Enterprise",
			MonthlyPrice: 300000,
			Limits: map[Resource]Limit{
				ResourceEmployees:   Unlimited(),
				ResourcePayrollRuns: Unlimited(),
				ResourceStorageMB:   Unlimited(),
			},
			Modules: []Module{
				ModuleDashboard, ModuleEmployees, ModulePayroll,
				ModuleInventory, ModuleCashRegister, ModuleReports, ModuleIntegrations,
				ModuleAIChat, ModuleCustomization,
			},
		},
	}
}

// DefaultCatalog returns a catalog with the built-in plans.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultPlans()...)
	if err != nil {
		panic(err)
	}
	return c
}

// NewCatalog builds a catalog. Every plan tier must appear exactly once.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[PlanID]Plan, len(plans))}
	for _, p := range plans {
		if !p.ID.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidArgument, p.ID)
		}
		if p.MonthlyPrice < 0 {
			return nil, fmt.Errorf("%w: plan %q has negative price", ErrInvalidArgument, p.ID)
		}
		for r := range p.Limits {
			if !r.IsValid() {
				return nil, fmt.Errorf("%w: plan %q limits unknown resource %q", ErrInvalidArgument, p.ID, r)
			}
		}
		for _, m := range p.Modules {
			if !m.IsValid() {
				return nil, fmt.Errorf("%w: plan %q enables unknown module %q", ErrInvalidArgument, p.ID, m)
			}
		}
		c.plans[p.ID] = p.clone()
	}
	for _, id := range AllPlanIDs {
		if _, ok := c.plans[id]; !ok {
			return nil, fmt.Errorf("%w: catalog is missing plan %q", ErrInvalidArgument, id)
		}
	}

	c.order = make([]PlanID, len(AllPlanIDs))
	copy(c.order, AllPlanIDs)
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.plans[c.order[i]].MonthlyPrice < c.plans[c.order[j]].MonthlyPrice
	})
	return c, nil
}

// GetPlan returns a plan by id.
func (c *Catalog) GetPlan(id PlanID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	return p.clone(), nil
}

// ListPlans returns all plans ordered by ascending monthly price.
func (c *Catalog) ListPlans() []Plan {
	plans := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		plans = append(plans, c.plans[id].clone())
	}
	return plans
}

// NextTier returns the plan listed right after id.
func (c *Catalog) NextTier(id PlanID) (Plan, bool) {
	for i, candidate := range c.order {
		if candidate == id && i+1 < len(c.order) {
			return c.plans[c.order[i+1]].clone(), true
		}
	}
	return Plan{}, false
}

// UpgradeFor returns the cheapest plan above from whose limit admits total.
func (c *Catalog) UpgradeFor(from PlanID, r Resource, total float64) (Plan, bool) {
	return c.firstAbove(from, func(p Plan) bool {
		return p.Limit(r).Allows(total)
	})
}

// UpgradeForModule returns the cheapest plan above from that unlocks m.
func (c *Catalog) UpgradeForModule(from PlanID, m Module) (Plan, bool) {
	return c.firstAbove(from, func(p Plan) bool {
		return p.HasModule(m)
	})
}

func (c *Catalog) firstAbove(from PlanID, match func(Plan) bool) (Plan, bool) {
	above := false
	for _, id := range c.order {
		if id == from {
			above = true
			continue
		}
		if above && match(c.plans[id]) {
			return c.plans[id].clone(), true
		}
	}
	return Plan{}, false
}

// PlanOverride replaces parts of a built-in plan.
type PlanOverride struct {
	DisplayName  string             `json:"displayName,omitempty"`
	MonthlyPrice *int64             `json:"monthlyPrice,omitempty"`
	Limits       map[Resource]Limit `json:"limits,omitempty"`
	Modules      []Module           `json:"modules,omitempty"`
}

// CatalogOverrides maps plan ids to overrides.
type CatalogOverrides map[PlanID]PlanOverride

// WithOverrides returns a new catalog with overrides applied. Limits are
// merged per resource; a non-empty module list replaces the plan's modules.
func (c *Catalog) WithOverrides(overrides CatalogOverrides) (*Catalog, error) {
	plans := make([]Plan, 0, len(c.plans))
	for _, id := range AllPlanIDs {
		plans = append(plans, c.plans[id].clone())
	}
	for id := range overrides {
		if !id.IsValid() {
			return nil, fmt.Errorf("%w: override for %q", ErrUnknownPlan, id)
		}
	}
	for i := range plans {
		o, ok := overrides[plans[i].ID]
		if !ok {
			continue
		}
		if o.DisplayName != "" {
			plans[i].DisplayName = o.DisplayName
		}
		if o.MonthlyPrice != nil {
			plans[i].MonthlyPrice = *o.MonthlyPrice
		}
		for r, l := range o.Limits {
			plans[i].Limits[r] = l
		}
		if len(o.Modules) > 0 {
			plans[i].Modules = append([]Module(nil), o.Modules...)
		}
	}
	return NewCatalog(plans...)
}
