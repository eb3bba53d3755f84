package domain

import (
	"fmt"
	"time"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// ParseSubscriptionStatus validates a status value. The legacy values
// "inactive" and "expired" map to canceled.
func ParseSubscriptionStatus(s string) (SubscriptionStatus, error) {
	switch s {
	case string(SubscriptionActive):
		return SubscriptionActive, nil
	case string(SubscriptionPastDue):
		return SubscriptionPastDue, nil
	case string(SubscriptionCanceled), "cancelled", "inactive", "expired":
		return SubscriptionCanceled, nil
	default:
		return "", fmt.Errorf("%w: unknown subscription status %q", ErrInvalidArgument, s)
	}
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
//
//	active   -> past_due | canceled
//	past_due -> active | canceled
//	canceled -> active
func (s SubscriptionStatus) CanTransitionTo(next SubscriptionStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case SubscriptionActive:
		return next == SubscriptionPastDue || next == SubscriptionCanceled
	case SubscriptionPastDue:
		return next == SubscriptionActive || next == SubscriptionCanceled
	case SubscriptionCanceled:
		return next == SubscriptionActive
	default:
		return false
	}
}

// BillingPeriod is how long a paid plan stays current after it is assigned
// or reactivated.
const BillingPeriod = 30 * 24 * time.Hour

// DefaultGracePeriod is how long a lapsed subscription stays past_due before
// it is canceled.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Subscription is a user's plan assignment and cached usage.
type Subscription struct {
	UserID         string
	PlanID         PlanID
	Status         SubscriptionStatus
	Usage          map[Resource]float64
	UsageUpdatedAt time.Time
	PlanChangedAt  time.Time
	// CurrentPeriodEnd is zero for the free plan, which never lapses.
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewSubscription creates the first-sign-in subscription: free and active.
func NewSubscription(userID string, now time.Time) (*Subscription, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	return &Subscription{
		UserID:    userID,
		PlanID:    PlanFree,
		Status:    SubscriptionActive,
		Usage:     make(map[Resource]float64, len(AllResources)),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive reports whether the subscription entitles paid features.
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// EffectivePlanID is the plan used for entitlement decisions.
func (s *Subscription) EffectivePlanID() PlanID {
	if !s.IsActive() {
		return PlanFree
	}
	return s.PlanID
}

// UsageOf returns the cached usage for a resource.
func (s *Subscription) UsageOf(r Resource) float64 {
	return s.Usage[r]
}

// SetUsage stores a usage value. Negative values are rejected.
func (s *Subscription) SetUsage(r Resource, value float64) error {
	if !r.IsValid() {
		return fmt.Errorf("%w: unknown resource %q", ErrInvalidArgument, r)
	}
	if value < 0 {
		return fmt.Errorf("%w: usage for %s cannot be negative", ErrInvalidArgument, r)
	}
	if s.Usage == nil {
		s.Usage = make(map[Resource]float64, len(AllResources))
	}
	s.Usage[r] = value
	return nil
}

// ChangePlan assigns a plan, starts a new billing period and reactivates
// the subscription. Usage is left untouched; a downgrade may leave the user
// over a limit.
func (s *Subscription) ChangePlan(id PlanID, now time.Time) error {
	if !id.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, id)
	}
	s.PlanID = id
	s.Status = SubscriptionActive
	s.PlanChangedAt = now
	s.CurrentPeriodEnd = periodEnd(id, now)
	s.UpdatedAt = now
	return nil
}

// TransitionTo moves the subscription to another status without changing its
// plan. Reactivating a lapsed paid plan starts a new billing period.
func (s *Subscription) TransitionTo(next SubscriptionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	if next == SubscriptionActive && s.Lapsed(now) {
		s.CurrentPeriodEnd = periodEnd(s.PlanID, now)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// Lapsed reports whether the billing period has ended.
func (s *Subscription) Lapsed(now time.Time) bool {
	return !s.CurrentPeriodEnd.IsZero() && !now.Before(s.CurrentPeriodEnd)
}

// LapseStatus returns the status a lapsed subscription should move to: past_due
// once the period ends, canceled once the grace period after it has passed
// too. It reports false when no change is due.
func (s *Subscription) LapseStatus(now time.Time, grace time.Duration) (SubscriptionStatus, bool) {
	if !s.Lapsed(now) || s.Status == SubscriptionCanceled {
		return "", false
	}
	next := SubscriptionPastDue
	if !now.Before(s.CurrentPeriodEnd.Add(grace)) {
		next = SubscriptionCanceled
	}
	if next == s.Status {
		return "", false
	}
	return next, true
}

func periodEnd(id PlanID, now time.Time) time.Time {
	if id == PlanFree {
		return time.Time{}
	}
	return now.Add(BillingPeriod)
}

// Clone returns a deep copy.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.Usage = make(map[Resource]float64, len(s.Usage))
	for r, v := range s.Usage {
		c.Usage[r] = v
	}
	return &c
}
