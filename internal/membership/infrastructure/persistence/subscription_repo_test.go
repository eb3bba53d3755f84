package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axyra/membership/internal/membership/domain"
)

func TestDocumentSubscriptionRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteDocumentStore(setupSQLiteDB(t))
	repo := NewDocumentSubscriptionRepository(store, nil)

	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	sub, err := domain.NewSubscription("u1", now)
	require.NoError(t, err)
	require.NoError(t, sub.ChangePlan(domain.PlanProfessional, now))
	require.NoError(t, sub.SetUsage(domain.ResourceEmployees, 12))
	require.NoError(t, sub.SetUsage(domain.ResourceStorageMB, 1.5))
	sub.UsageUpdatedAt = now

	require.NoError(t, repo.Save(ctx, sub))

	found, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.PlanProfessional, found.PlanID)
	assert.Equal(t, domain.SubscriptionActive, found.Status)
	assert.Equal(t, float64(12), found.UsageOf(domain.ResourceEmployees))
	assert.Equal(t, 1.5, found.UsageOf(domain.ResourceStorageMB))
	assert.True(t, found.UsageUpdatedAt.Equal(now))
	assert.True(t, found.PlanChangedAt.Equal(now))
	assert.True(t, found.CurrentPeriodEnd.Equal(now.Add(domain.BillingPeriod)))
	assert.True(t, found.CreatedAt.Equal(now))
}

func TestDocumentSubscriptionRepository_DowngradeClearsPeriodEnd(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentSubscriptionRepository(NewSQLiteDocumentStore(setupSQLiteDB(t)), nil)

	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	sub, err := domain.NewSubscription("u1", now)
	require.NoError(t, err)
	require.NoError(t, sub.ChangePlan(domain.PlanEnterprise, now))
	require.NoError(t, repo.Save(ctx, sub))

	require.NoError(t, sub.ChangePlan(domain.PlanFree, now.Add(time.Hour)))
	require.NoError(t, repo.Save(ctx, sub))

	found, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, found.PlanID)
	assert.True(t, found.CurrentPeriodEnd.IsZero())
}

func TestDocumentSubscriptionRepository_KeepsProfileFields(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteDocumentStore(setupSQLiteDB(t))
	repo := NewDocumentSubscriptionRepository(store, nil)

	require.NoError(t, store.WriteDocument(ctx, domain.CollectionUsers, "u1", domain.Document{"email": "ana@example.com"}))

	found, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, found, "user without plan has no subscription")

	sub, err := domain.NewSubscription("u1", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sub))

	doc, err := store.ReadDocument(ctx, domain.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", doc["email"])
	assert.Equal(t, "free", doc["plan"])
}

func TestDocumentSubscriptionRepository_FindMissing(t *testing.T) {
	repo := NewDocumentSubscriptionRepository(NewSQLiteDocumentStore(setupSQLiteDB(t)), nil)

	found, err := repo.FindByUserID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestDocumentSubscriptionRepository_LegacyValues(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteDocumentStore(setupSQLiteDB(t))
	repo := NewDocumentSubscriptionRepository(store, nil)

	require.NoError(t, store.WriteDocument(ctx, domain.CollectionUsers, "legacy", domain.Document{
		"plan":       "basic",
		"planStatus": "inactive",
		"usage":      map[string]any{"employees": 4, "seats": 9, "payrollRuns": -3},
	}))
	require.NoError(t, store.WriteDocument(ctx, domain.CollectionUsers, "odd", domain.Document{
		"plan": "gold",
	}))

	legacy, err := repo.FindByUserID(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanBasic, legacy.PlanID)
	assert.Equal(t, domain.SubscriptionCanceled, legacy.Status)
	assert.Equal(t, float64(4), legacy.UsageOf(domain.ResourceEmployees))
	assert.Zero(t, legacy.UsageOf(domain.ResourcePayrollRuns))

	odd, err := repo.FindByUserID(ctx, "odd")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, odd.PlanID)
	assert.Equal(t, domain.SubscriptionActive, odd.Status)
}

func TestDocumentSubscriptionRepository_SaveUsageOnly(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteDocumentStore(setupSQLiteDB(t))
	repo := NewDocumentSubscriptionRepository(store, nil)

	sub, err := domain.NewSubscription("u1", time.Now())
	require.NoError(t, err)
	require.NoError(t, sub.ChangePlan(domain.PlanBasic, time.Now()))
	require.NoError(t, repo.Save(ctx, sub))

	stale := sub.Clone()
	stale.PlanID = domain.PlanFree
	require.NoError(t, stale.SetUsage(domain.ResourcePayrollRuns, 8))
	require.NoError(t, repo.SaveUsage(ctx, stale))

	found, err := repo.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanBasic, found.PlanID)
	assert.Equal(t, float64(8), found.UsageOf(domain.ResourcePayrollRuns))

	ids, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, ids)
}
