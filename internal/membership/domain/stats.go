package domain

import "time"

// SubscriptionStats aggregates subscriptions by status and plan.
type SubscriptionStats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	PastDue  int `json:"pastDue"`
	Canceled int `json:"canceled"`
	// Expired counts paid subscriptions whose billing period has ended,
	// whatever their status.
	Expired int            `json:"expired"`
	ByPlan  map[PlanID]int `json:"byPlan"`
}

// NewSubscriptionStats returns empty stats with every plan present.
func NewSubscriptionStats() SubscriptionStats {
	byPlan := make(map[PlanID]int, len(AllPlanIDs))
	for _, id := range AllPlanIDs {
		byPlan[id] = 0
	}
	return SubscriptionStats{ByPlan: byPlan}
}

// Add counts sub as of now.
func (s *SubscriptionStats) Add(sub *Subscription, now time.Time) {
	if sub == nil {
		return
	}
	s.Total++
	switch sub.Status {
	case SubscriptionActive:
		s.Active++
	case SubscriptionPastDue:
		s.PastDue++
	case SubscriptionCanceled:
		s.Canceled++
	}
	if sub.Lapsed(now) {
		s.Expired++
	}
	if s.ByPlan == nil {
		s.ByPlan = make(map[PlanID]int, len(AllPlanIDs))
	}
	s.ByPlan[sub.PlanID]++
}
