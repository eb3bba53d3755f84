package domain

import "fmt"

// DecisionKind classifies an entitlement decision.
type DecisionKind string

const (
	DecisionAllowed      DecisionKind = "allowed"
	DecisionLimitReached DecisionKind = "limit_reached"
	DecisionModuleLocked DecisionKind = "module_locked"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Kind      DecisionKind `json:"kind"`
	Plan      PlanID       `json:"plan"`
	Resource  Resource     `json:"resource,omitempty"`
	Module    Module       `json:"module,omitempty"`
	Limit     Limit        `json:"limit"`
	Current   float64      `json:"current"`
	Requested float64      `json:"requested,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	UpgradeTo PlanID       `json:"upgradeTo,omitempty"`
}

// Allowed reports whether the action may proceed.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllowed
}

// Remaining returns how much of the resource is still available, or -1 when unlimited.
func (d Decision) Remaining() float64 {
	max, ok := d.Limit.Value()
	if !ok {
		return -1
	}
	if rem := float64(max) - d.Current; rem > 0 {
		return rem
	}
	return 0
}

// Err converts a denial into an error wrapping ErrLimitReached or ErrModuleLocked.
func (d Decision) Err() error {
	switch d.Kind {
	case DecisionLimitReached:
		return fmt.Errorf("%w: %s", ErrLimitReached, d.Reason)
	case DecisionModuleLocked:
		return fmt.Errorf("%w: %s", ErrModuleLocked, d.Reason)
	default:
		return nil
	}
}
