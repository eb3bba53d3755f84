package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
)

// Cache keys in the key-value store.
const (
	subscriptionKeyPrefix = "axyra:subscription:"
	CatalogOverridesKey   = "axyra:catalog:overrides"
)

func subscriptionKey(userID string) string {
	return subscriptionKeyPrefix + userID
}

// cachedSubscription is the JSON form of a subscription in the key-value store.
type cachedSubscription struct {
	UserID         string                      `json:"userId"`
	PlanID         domain.PlanID               `json:"planId"`
	Status         domain.SubscriptionStatus   `json:"status"`
	Usage          map[domain.Resource]float64 `json:"usage"`
	UsageUpdatedAt int64                       `json:"usageUpdatedAt,omitempty"`
	PlanChangedAt  int64                       `json:"planChangedAt,omitempty"`
	PeriodEnd      int64                       `json:"periodEnd,omitempty"`
	CreatedAt      int64                       `json:"createdAt,omitempty"`
	UpdatedAt      int64                       `json:"updatedAt,omitempty"`
}

// subscriptionCache mirrors subscriptions into the key-value store so they
// stay readable while the document store is unavailable. Every operation is
// best effort.
type subscriptionCache struct {
	kv     domain.KeyValueStore
	logger *slog.Logger
}

func (c *subscriptionCache) load(ctx context.Context, userID string) (*domain.Subscription, bool) {
	if c == nil || c.kv == nil {
		return nil, false
	}

	raw, ok, err := c.kv.Get(ctx, subscriptionKey(userID))
	if err != nil {
		c.logger.WarnContext(ctx, "subscription cache read failed", "user_id", userID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var cached cachedSubscription
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		c.logger.WarnContext(ctx, "discarding corrupt cached subscription", "user_id", userID, "error", err)
		return nil, false
	}
	if !cached.PlanID.IsValid() {
		return nil, false
	}
	status, err := domain.ParseSubscriptionStatus(string(cached.Status))
	if err != nil {
		return nil, false
	}

	sub := &domain.Subscription{
		UserID:           userID,
		PlanID:           cached.PlanID,
		Status:           status,
		Usage:            make(map[domain.Resource]float64, len(cached.Usage)),
		UsageUpdatedAt:   fromMillis(cached.UsageUpdatedAt),
		PlanChangedAt:    fromMillis(cached.PlanChangedAt),
		CurrentPeriodEnd: fromMillis(cached.PeriodEnd),
		CreatedAt:        fromMillis(cached.CreatedAt),
		UpdatedAt:        fromMillis(cached.UpdatedAt),
	}
	for r, v := range cached.Usage {
		if r.IsValid() && v >= 0 {
			sub.Usage[r] = v
		}
	}
	return sub, true
}

func (c *subscriptionCache) store(ctx context.Context, sub *domain.Subscription) {
	if c == nil || c.kv == nil || sub == nil {
		return
	}

	data, err := json.Marshal(cachedSubscription{
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		Usage:          sub.Usage,
		UsageUpdatedAt: toMillis(sub.UsageUpdatedAt),
		PlanChangedAt:  toMillis(sub.PlanChangedAt),
		PeriodEnd:      toMillis(sub.CurrentPeriodEnd),
		CreatedAt:      toMillis(sub.CreatedAt),
		UpdatedAt:      toMillis(sub.UpdatedAt),
	})
	if err != nil {
		c.logger.WarnContext(ctx, "subscription cache encode failed", "user_id", sub.UserID, "error", err)
		return
	}

	if err := c.kv.Set(ctx, subscriptionKey(sub.UserID), string(data)); err != nil {
		c.logger.WarnContext(ctx, "subscription cache write failed", "user_id", sub.UserID, "error", err)
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
