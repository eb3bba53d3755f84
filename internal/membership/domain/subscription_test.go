package domain_test

import (
	"testing"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubscription(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	sub, err := domain.NewSubscription("user-1", now)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, sub.PlanID)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, now, sub.CreatedAt)
	assert.Zero(t, sub.UsageOf(domain.ResourceEmployees))

	_, err = domain.NewSubscription("", now)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubscription_EffectivePlanID(t *testing.T) {
	tests := []struct {
		status   domain.SubscriptionStatus
		expected domain.PlanID
	}{
		{domain.SubscriptionActive, domain.PlanEnterprise},
		{domain.SubscriptionPastDue, domain.PlanFree},
		{domain.SubscriptionCanceled, domain.PlanFree},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			sub := &domain.Subscription{UserID: "u", PlanID: domain.PlanEnterprise, Status: tt.status}
			assert.Equal(t, tt.expected, sub.EffectivePlanID())
		})
	}
}

func TestSubscription_SetUsage(t *testing.T) {
	sub := &domain.Subscription{UserID: "u"}

	require.NoError(t, sub.SetUsage(domain.ResourceStorageMB, 12.5))
	assert.Equal(t, 12.5, sub.UsageOf(domain.ResourceStorageMB))

	assert.ErrorIs(t, sub.SetUsage(domain.ResourceEmployees, -1), domain.ErrInvalidArgument)
	assert.ErrorIs(t, sub.SetUsage("seats", 1), domain.ErrInvalidArgument)
}

func TestSubscription_ChangePlanReactivates(t *testing.T) {
	now := time.Now()
	sub := &domain.Subscription{UserID: "u", PlanID: domain.PlanBasic, Status: domain.SubscriptionCanceled}
	require.NoError(t, sub.SetUsage(domain.ResourceEmployees, 40))

	require.NoError(t, sub.ChangePlan(domain.PlanFree, now))
	assert.Equal(t, domain.PlanFree, sub.PlanID)
	assert.Equal(t, domain.SubscriptionActive, sub.Status)
	assert.Equal(t, now, sub.PlanChangedAt)
	assert.True(t, sub.CurrentPeriodEnd.IsZero(), "free never lapses")
	assert.Equal(t, float64(40), sub.UsageOf(domain.ResourceEmployees))

	require.NoError(t, sub.ChangePlan(domain.PlanProfessional, now))
	assert.Equal(t, now.Add(domain.BillingPeriod), sub.CurrentPeriodEnd)

	assert.ErrorIs(t, sub.ChangePlan("gold", now), domain.ErrUnknownPlan)
}

func TestSubscription_LapseStatus(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(domain.BillingPeriod)
	grace := 72 * time.Hour

	tests := []struct {
		name   string
		status domain.SubscriptionStatus
		at     time.Time
		next   domain.SubscriptionStatus
		due    bool
	}{
		{"within period", domain.SubscriptionActive, end.Add(-time.Second), "", false},
		{"period ended", domain.SubscriptionActive, end, domain.SubscriptionPastDue, true},
		{"already past due", domain.SubscriptionPastDue, end.Add(time.Hour), "", false},
		{"grace over", domain.SubscriptionPastDue, end.Add(grace), domain.SubscriptionCanceled, true},
		{"active past grace", domain.SubscriptionActive, end.Add(grace + time.Hour), domain.SubscriptionCanceled, true},
		{"canceled stays", domain.SubscriptionCanceled, end.Add(grace * 2), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &domain.Subscription{UserID: "u"}
			require.NoError(t, sub.ChangePlan(domain.PlanBasic, start))
			sub.Status = tt.status

			next, due := sub.LapseStatus(tt.at, grace)
			assert.Equal(t, tt.due, due)
			assert.Equal(t, tt.next, next)
		})
	}

	free, err := domain.NewSubscription("u", start)
	require.NoError(t, err)
	_, due := free.LapseStatus(start.Add(10*domain.BillingPeriod), grace)
	assert.False(t, due)
}

func TestSubscription_ReactivationRenewsLapsedPeriod(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	sub := &domain.Subscription{UserID: "u"}
	require.NoError(t, sub.ChangePlan(domain.PlanEnterprise, start))
	require.NoError(t, sub.TransitionTo(domain.SubscriptionPastDue, start.Add(domain.BillingPeriod)))

	later := start.Add(domain.BillingPeriod + 48*time.Hour)
	require.NoError(t, sub.TransitionTo(domain.SubscriptionActive, later))
	assert.Equal(t, later.Add(domain.BillingPeriod), sub.CurrentPeriodEnd)
	assert.False(t, sub.Lapsed(later))
}

func TestSubscriptionStats_Add(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	stats := domain.NewSubscriptionStats()

	active := &domain.Subscription{UserID: "a"}
	require.NoError(t, active.ChangePlan(domain.PlanBasic, now.Add(-time.Hour)))
	lapsed := &domain.Subscription{UserID: "b"}
	require.NoError(t, lapsed.ChangePlan(domain.PlanProfessional, now.Add(-domain.BillingPeriod-time.Hour)))
	canceled := &domain.Subscription{UserID: "c", PlanID: domain.PlanFree, Status: domain.SubscriptionCanceled}

	for _, sub := range []*domain.Subscription{active, lapsed, canceled, nil} {
		stats.Add(sub, now)
	}

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Canceled)
	assert.Equal(t, 1, stats.Expired)
	assert.Equal(t, 1, stats.ByPlan[domain.PlanProfessional])
	assert.Equal(t, 0, stats.ByPlan[domain.PlanEnterprise])
}

func TestSubscription_TransitionTo(t *testing.T) {
	tests := []struct {
		from    domain.SubscriptionStatus
		to      domain.SubscriptionStatus
		allowed bool
	}{
		{domain.SubscriptionActive, domain.SubscriptionPastDue, true},
		{domain.SubscriptionActive, domain.SubscriptionCanceled, true},
		{domain.SubscriptionPastDue, domain.SubscriptionActive, true},
		{domain.SubscriptionPastDue, domain.SubscriptionCanceled, true},
		{domain.SubscriptionCanceled, domain.SubscriptionActive, true},
		{domain.SubscriptionCanceled, domain.SubscriptionPastDue, false},
		{domain.SubscriptionCanceled, domain.SubscriptionCanceled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			sub := &domain.Subscription{UserID: "u", PlanID: domain.PlanProfessional, Status: tt.from}
			err := sub.TransitionTo(tt.to, time.Now())
			if !tt.allowed {
				assert.ErrorIs(t, err, domain.ErrInvalidTransition)
				assert.Equal(t, tt.from, sub.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, sub.Status)
			assert.Equal(t, domain.PlanProfessional, sub.PlanID)
		})
	}
}

func TestParseSubscriptionStatus_Legacy(t *testing.T) {
	for _, legacy := range []string{"inactive", "expired", "cancelled"} {
		status, err := domain.ParseSubscriptionStatus(legacy)
		require.NoError(t, err)
		assert.Equal(t, domain.SubscriptionCanceled, status)
	}

	_, err := domain.ParseSubscriptionStatus("trialing")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestSubscription_Clone(t *testing.T) {
	sub := &domain.Subscription{UserID: "u", Usage: map[domain.Resource]float64{domain.ResourceEmployees: 3}}

	clone := sub.Clone()
	clone.Usage[domain.ResourceEmployees] = 9

	assert.Equal(t, float64(3), sub.UsageOf(domain.ResourceEmployees))
	assert.Nil(t, (*domain.Subscription)(nil).Clone())
}
