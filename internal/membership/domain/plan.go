package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PlanID identifies a plan tier.
type PlanID string

const (
	PlanFree         PlanID = "free"
	PlanBasic        PlanID = "basic"
	PlanProfessional PlanID = "professional"
	PlanEnterprise   PlanID = "enterprise"
)

// AllPlanIDs lists every plan tier from cheapest to most expensive.
var AllPlanIDs = []PlanID{PlanFree, PlanBasic, PlanProfessional, PlanEnterprise}

// ParsePlanID validates a plan identifier.
func ParsePlanID(s string) (PlanID, error) {
	id := PlanID(s)
	if !id.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return id, nil
}

// IsValid reports whether the id belongs to the plan enumeration.
func (p PlanID) IsValid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanProfessional, PlanEnterprise:
		return true
	default:
		return false
	}
}

func (p PlanID) String() string {
	return string(p)
}

// Resource is a metered quantity limited per plan.
type Resource string

const (
	// ResourceEmployees counts active employee records. Never resets.
	ResourceEmployees Resource = "employees"
	// ResourcePayrollRuns counts payroll runs created in the current calendar month.
	ResourcePayrollRuns Resource = "payrollRuns"
	// ResourceStorageMB sums stored file sizes in mebibytes. Never resets.
	ResourceStorageMB Resource = "storageMb"
)

// AllResources lists every metered resource.
var AllResources = []Resource{ResourceEmployees, ResourcePayrollRuns, ResourceStorageMB}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown resource %q", ErrInvalidArgument, s)
	}
	return r, nil
}

// IsValid reports whether the resource belongs to the enumeration.
func (r Resource) IsValid() bool {
	switch r {
	case ResourceEmployees, ResourcePayrollRuns, ResourceStorageMB:
		return true
	default:
		return false
	}
}

// ResetsMonthly reports whether usage for the resource restarts each calendar month.
func (r Resource) ResetsMonthly() bool {
	return r == ResourcePayrollRuns
}

// Label returns a human readable resource name.
func (r Resource) Label() string {
	switch r {
	case ResourceEmployees:
		return "Employees"
	case ResourcePayrollRuns:
		return "Payroll runs this month"
	case ResourceStorageMB:
		return "Storage (MB)"
	default:
		return string(r)
	}
}

// Module identifies a feature section of the application.
type Module string

const (
	ModuleDashboard      Module = "dashboard"
	ModuleEmployeesBasic Module = "employees_basic"
	ModulePayrollBasic   Module = "payroll_basic"
	ModuleEmployees      Module = "employees"
	ModulePayroll        Module = "payroll"
	ModuleReportsBasic   Module = "reports_basic"
	ModuleInventory      Module = "inventory"
	ModuleCashRegister   Module = "cash_register"
	ModuleReports        Module = "reports"
	ModuleIntegrations   Module = "integrations"
	ModuleAIChat         Module = "ai_chat"
	ModuleCustomization  Module = "customization"
)

// AllModules lists every feature module in display order.
var AllModules = []Module{
	ModuleDashboard,
	ModuleEmployeesBasic,
	ModulePayrollBasic,
	ModuleEmployees,
	ModulePayroll,
	ModuleReportsBasic,
	ModuleInventory,
	ModuleCashRegister,
	ModuleReports,
	ModuleIntegrations,
	ModuleAIChat,
	ModuleCustomization,
}

// ParseModule validates a module identifier.
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown module %q", ErrInvalidArgument, s)
	}
	return m, nil
}

// IsValid reports whether the module belongs to the enumeration.
func (m Module) IsValid() bool {
	for _, known := range AllModules {
		if m == known {
			return true
		}
	}
	return false
}

// Limit is a resource ceiling: either unlimited or a non-negative maximum.
type Limit struct {
	max       int64
	unlimited bool
}

// Unlimited returns a limit that never enforces a ceiling.
func Unlimited() Limit {
	return Limit{unlimited: true}
}

// Max returns a finite limit. Negative values are clamped to zero.
func Max(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{max: n}
}

// IsUnlimited reports whether the limit has no ceiling.
func (l Limit) IsUnlimited() bool {
	return l.unlimited
}

// Value returns the ceiling and false when unlimited.
func (l Limit) Value() (int64, bool) {
	if l.unlimited {
		return 0, false
	}
	return l.max, true
}

// Allows reports whether the given total stays within the limit.
func (l Limit) Allows(total float64) bool {
	return l.unlimited || total <= float64(l.max)
}

func (l Limit) String() string {
	if l.unlimited {
		return "∞"
	}
	return strconv.FormatInt(l.max, 10)
}

// MarshalJSON encodes unlimited as -1.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return []byte("-1"), nil
	}
	return []byte(strconv.FormatInt(l.max, 10)), nil
}

// UnmarshalJSON decodes -1 and null as unlimited.
func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: limit must be an integer: %v", ErrInvalidArgument, err)
	}
	switch {
	case n == -1:
		*l = Unlimited()
	case n < 0:
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidArgument, n)
	default:
		*l = Max(n)
	}
	return nil
}

// Plan is an immutable catalog entry.
type Plan struct {
	ID           PlanID
	DisplayName  string
	MonthlyPrice int64
	Limits       map[Resource]Limit
	Modules      []Module
}

// Limit returns the plan's ceiling for a resource. Resources without an
// entry are not enforced and resolve to Unlimited.
func (p Plan) Limit(r Resource) Limit {
	if l, ok := p.Limits[r]; ok {
		return l
	}
	return Unlimited()
}

// HasModule reports whether the plan unlocks the module.
func (p Plan) HasModule(m Module) bool {
	for _, enabled := range p.Modules {
		if enabled == m {
			return true
		}
	}
	return false
}

func (p Plan) clone() Plan {
	limits := make(map[Resource]Limit, len(p.Limits))
	for r, l := range p.Limits {
		limits[r] = l
	}
	modules := make([]Module, len(p.Modules))
	copy(modules, p.Modules)
	p.Limits = limits
	p.Modules = modules
	return p
}
