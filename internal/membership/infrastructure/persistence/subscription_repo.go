package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
)

// Fields of the users document that hold subscription state.
const (
	fieldPlan            = "plan"
	fieldPlanStatus      = "planStatus"
	fieldUsage           = "usage"
	fieldLastUsageUpdate = "lastUsageUpdate"
	fieldPlanUpgradedAt  = "planUpgradedAt"
	fieldPlanEndDate     = "planEndDate"
	fieldCreatedAt       = "createdAt"
	fieldUpdatedAt       = "updatedAt"
)

// DocumentSubscriptionRepository stores subscriptions as fields of the
// users/{id} document, alongside the profile data the rest of the app keeps there.
type DocumentSubscriptionRepository struct {
	store  domain.DocumentStore
	logger *slog.Logger
}

// NewDocumentSubscriptionRepository creates a new repository.
func NewDocumentSubscriptionRepository(store domain.DocumentStore, logger *slog.Logger) *DocumentSubscriptionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentSubscriptionRepository{store: store, logger: logger}
}

// FindByUserID loads a subscription. A user document without a plan field
// has no subscription yet.
func (r *DocumentSubscriptionRepository) FindByUserID(ctx context.Context, userID string) (*domain.Subscription, error) {
	doc, err := r.store.ReadDocument(ctx, domain.CollectionUsers, userID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rawPlan, ok := doc[fieldPlan].(string)
	if !ok || rawPlan == "" {
		return nil, nil
	}

	return r.decode(userID, doc, rawPlan), nil
}

// Save writes the full subscription state.
func (r *DocumentSubscriptionRepository) Save(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.UserID == "" {
		return fmt.Errorf("%w: subscription user id is required", domain.ErrInvalidArgument)
	}

	patch := domain.Document{
		fieldPlan:       sub.PlanID.String(),
		fieldPlanStatus: string(sub.Status),
		fieldUsage:      encodeUsage(sub.Usage),
	}
	putMillis(patch, fieldLastUsageUpdate, sub.UsageUpdatedAt)
	putMillis(patch, fieldPlanUpgradedAt, sub.PlanChangedAt)
	// Written even when zero so a move to free clears the old end date.
	patch[fieldPlanEndDate] = int64(0)
	putMillis(patch, fieldPlanEndDate, sub.CurrentPeriodEnd)
	putMillis(patch, fieldCreatedAt, sub.CreatedAt)
	putMillis(patch, fieldUpdatedAt, sub.UpdatedAt)

	return r.store.WriteDocument(ctx, domain.CollectionUsers, sub.UserID, patch)
}

// SaveUsage writes only the usage snapshot.
func (r *DocumentSubscriptionRepository) SaveUsage(ctx context.Context, sub *domain.Subscription) error {
	if sub == nil || sub.UserID == "" {
		return fmt.Errorf("%w: subscription user id is required", domain.ErrInvalidArgument)
	}

	patch := domain.Document{fieldUsage: encodeUsage(sub.Usage)}
	putMillis(patch, fieldLastUsageUpdate, sub.UsageUpdatedAt)

	return r.store.WriteDocument(ctx, domain.CollectionUsers, sub.UserID, patch)
}

// ListUserIDs returns the ids of all user documents.
func (r *DocumentSubscriptionRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	return r.store.ListIDs(ctx, domain.CollectionUsers)
}

func (r *DocumentSubscriptionRepository) decode(userID string, doc domain.Document, rawPlan string) *domain.Subscription {
	sub := &domain.Subscription{
		UserID: userID,
		PlanID: domain.PlanFree,
		Status: domain.SubscriptionActive,
		Usage:  make(map[domain.Resource]float64),
	}

	if id, err := domain.ParsePlanID(rawPlan); err == nil {
		sub.PlanID = id
	} else {
		r.logger.Warn("unknown stored plan, treating as free", "user_id", userID, "plan", rawPlan)
	}

	if rawStatus, ok := doc[fieldPlanStatus].(string); ok && rawStatus != "" {
		status, err := domain.ParseSubscriptionStatus(rawStatus)
		if err != nil {
			r.logger.Warn("unknown stored plan status, treating as canceled", "user_id", userID, "status", rawStatus)
			status = domain.SubscriptionCanceled
		}
		sub.Status = status
	}

	if usage, ok := doc[fieldUsage].(map[string]any); ok {
		for key, raw := range usage {
			resource, err := domain.ParseResource(key)
			if err != nil {
				continue
			}
			if v, ok := toFloat(raw); ok && v >= 0 {
				sub.Usage[resource] = v
			}
		}
	}

	sub.UsageUpdatedAt = getMillis(doc, fieldLastUsageUpdate)
	sub.PlanChangedAt = getMillis(doc, fieldPlanUpgradedAt)
	sub.CurrentPeriodEnd = getMillis(doc, fieldPlanEndDate)
	sub.CreatedAt = getMillis(doc, fieldCreatedAt)
	sub.UpdatedAt = getMillis(doc, fieldUpdatedAt)

	return sub
}

func encodeUsage(usage map[domain.Resource]float64) map[string]any {
	out := make(map[string]any, len(domain.AllResources))
	for _, r := range domain.AllResources {
		out[string(r)] = usage[r]
	}
	return out
}

func putMillis(doc domain.Document, field string, t time.Time) {
	if !t.IsZero() {
		doc[field] = t.UnixMilli()
	}
}

func getMillis(doc domain.Document, field string) time.Time {
	v, ok := toFloat(doc[field])
	if !ok || v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(v)).UTC()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
