package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/pkg/observability"
)

// PlanMutator is the only component that changes a subscription's plan or
// status. Mutations for the same user are serialized.
type PlanMutator struct {
	repo     domain.SubscriptionRepository
	auth     domain.AuthContext
	cache    *subscriptionCache
	notifier domain.Notifier
	catalog  func() *domain.Catalog
	logger   *slog.Logger
	metrics  observability.Metrics
	now      func() time.Time
	grace    time.Duration
	locks    *userLocks
}

// MutatorConfig holds the collaborators of a PlanMutator.
type MutatorConfig struct {
	Repo     domain.SubscriptionRepository
	Auth     domain.AuthContext
	Cache    domain.KeyValueStore
	Notifier domain.Notifier
	// Catalog returns the catalog in effect. Defaults to the built-in catalog.
	Catalog func() *domain.Catalog
	// GracePeriod defaults to domain.DefaultGracePeriod.
	GracePeriod time.Duration
	Logger      *slog.Logger
	Metrics     observability.Metrics
	Now         func() time.Time
}

// NewPlanMutator creates a new mutator.
func NewPlanMutator(cfg MutatorConfig) *PlanMutator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Catalog == nil {
		catalog := domain.DefaultCatalog()
		cfg.Catalog = func() *domain.Catalog { return catalog }
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = domain.DefaultGracePeriod
	}
	return &PlanMutator{
		repo:     cfg.Repo,
		auth:     cfg.Auth,
		cache:    &subscriptionCache{kv: cfg.Cache, logger: cfg.Logger},
		notifier: cfg.Notifier,
		catalog:  cfg.Catalog,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		grace:    cfg.GracePeriod,
		locks:    newUserLocks(),
	}
}

// Upgrade moves userID to planID and marks the subscription active. It is
// also the downgrade path: current usage is not checked against the new
// plan's limits.
func (m *PlanMutator) Upgrade(ctx context.Context, userID string, planID domain.PlanID) (*domain.Subscription, error) {
	if _, err := m.catalog().GetPlan(planID); err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, userID); err != nil {
		return nil, err
	}

	return m.mutate(ctx, userID, func(sub *domain.Subscription, now time.Time) (string, error) {
		from := sub.PlanID
		if err := sub.ChangePlan(planID, now); err != nil {
			return "", err
		}
		m.metrics.Counter(observability.MetricPlanChanges, 1,
			observability.T("from", string(from)),
			observability.T("to", string(planID)),
		)
		m.logger.InfoContext(ctx, "plan changed", "user_id", userID, "from", from, "to", planID)
		return domain.EventPlanChanged, nil
	})
}

// ChangeStatus moves the subscription through its status state machine
// without touching the plan.
func (m *PlanMutator) ChangeStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	if _, err := domain.ParseSubscriptionStatus(string(status)); err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, userID); err != nil {
		return nil, err
	}

	return m.mutate(ctx, userID, func(sub *domain.Subscription, now time.Time) (string, error) {
		return m.transition(ctx, sub, status, now)
	})
}

// Expire moves userID's subscription to the status its lapsed billing period
// calls for. It runs on behalf of the system, so no signed-in user is
// required, and reports false when nothing was due.
func (m *PlanMutator) Expire(ctx context.Context, userID string) (*domain.Subscription, bool, error) {
	if userID == "" {
		return nil, false, domain.ErrInvalidArgument
	}

	expired := false
	sub, err := m.mutate(ctx, userID, func(sub *domain.Subscription, now time.Time) (string, error) {
		next, due := sub.LapseStatus(now, m.grace)
		if !due {
			return "", nil
		}
		expired = true
		return m.transition(ctx, sub, next, now)
	})
	if err != nil {
		return nil, false, err
	}
	return sub, expired, nil
}

func (m *PlanMutator) transition(ctx context.Context, sub *domain.Subscription, status domain.SubscriptionStatus, now time.Time) (string, error) {
	from := sub.Status
	if err := sub.TransitionTo(status, now); err != nil {
		return "", err
	}
	m.metrics.Counter(observability.MetricStatusChanges, 1, observability.T("to", string(status)))
	m.logger.InfoContext(ctx, "subscription status changed", "user_id", sub.UserID, "from", from, "to", status)
	return domain.EventStatusChanged, nil
}

func (m *PlanMutator) authorize(ctx context.Context, userID string) error {
	if userID == "" {
		return domain.ErrInvalidArgument
	}
	if m.auth == nil || m.auth.CurrentUserID(ctx) == "" {
		return domain.ErrNotAuthenticated
	}
	return nil
}

// mutate applies a change to the latest stored subscription while holding
// the user's slot. An apply that returns no event leaves the store untouched.
func (m *PlanMutator) mutate(ctx context.Context, userID string, apply func(*domain.Subscription, time.Time) (string, error)) (*domain.Subscription, error) {
	unlock, err := m.locks.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := m.now()
	sub, err := m.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub == nil {
		if sub, err = domain.NewSubscription(userID, now); err != nil {
			return nil, err
		}
	}

	event, err := apply(sub, now)
	if err != nil {
		return nil, err
	}
	if event == "" {
		return sub.Clone(), nil
	}

	if err := m.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	m.cache.store(ctx, sub)

	if m.notifier != nil {
		m.notifier.Notify(ctx, event, domain.PlanChangedPayload{
			UserID: sub.UserID,
			PlanID: sub.PlanID,
			Status: sub.Status,
		})
	}

	return sub.Clone(), nil
}
