package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/pkg/observability"
)

// Service is the membership façade used by the CLI, the MCP tools and the
// worker. It is safe for concurrent use.
type Service struct {
	repo       domain.SubscriptionRepository
	kv         domain.KeyValueStore
	auth       domain.AuthContext
	notifier   domain.Notifier
	cache      *subscriptionCache
	accountant *UsageAccountant
	mutator    *PlanMutator
	logger     *slog.Logger
	metrics    observability.Metrics
	now        func() time.Time

	catalog atomic.Pointer[catalogState]
}

// catalogState is the catalog in effect and the stored overrides it was
// built from.
type catalogState struct {
	raw     string
	catalog *domain.Catalog
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Store    domain.DocumentStore
	Repo     domain.SubscriptionRepository
	KV       domain.KeyValueStore
	Auth     domain.AuthContext
	Notifier domain.Notifier
	// GracePeriod is how long a lapsed subscription stays past_due.
	GracePeriod time.Duration
	Logger      *slog.Logger
	Metrics     observability.Metrics
	Now         func() time.Time
}

// NewService wires the accountant and mutator around shared collaborators.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		repo:     cfg.Repo,
		kv:       cfg.KV,
		auth:     cfg.Auth,
		notifier: cfg.Notifier,
		cache:    &subscriptionCache{kv: cfg.KV, logger: cfg.Logger},
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	s.catalog.Store(&catalogState{catalog: domain.DefaultCatalog()})

	s.accountant = NewUsageAccountant(AccountantConfig{
		Store:    cfg.Store,
		Repo:     cfg.Repo,
		Cache:    cfg.KV,
		Notifier: cfg.Notifier,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
		Now:      cfg.Now,
	})
	s.mutator = NewPlanMutator(MutatorConfig{
		Repo:        cfg.Repo,
		Auth:        cfg.Auth,
		Cache:       cfg.KV,
		Notifier:    cfg.Notifier,
		Catalog:     s.current,
		GracePeriod: cfg.GracePeriod,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
		Now:         cfg.Now,
	})
	s.accountant.locks = s.mutator.locks

	return s
}

// Catalog returns the plan catalog in effect, picking up overrides another
// process stored since the last call.
func (s *Service) Catalog(ctx context.Context) *domain.Catalog {
	s.syncCatalog(ctx)
	return s.current()
}

// Evaluator returns an evaluator over the current catalog.
func (s *Service) Evaluator(ctx context.Context) *domain.Evaluator {
	return domain.NewEvaluator(s.Catalog(ctx))
}

// ListPlans returns all plans ordered by price.
func (s *Service) ListPlans(ctx context.Context) []domain.Plan {
	return s.Catalog(ctx).ListPlans()
}

func (s *Service) current() *domain.Catalog {
	return s.catalog.Load().catalog
}

// SignIn ensures userID has a subscription, creating a free one on first
// sign-in.
func (s *Service) SignIn(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	if sub != nil {
		s.cache.store(ctx, sub)
		return sub, nil
	}

	sub, err = domain.NewSubscription(userID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	s.cache.store(ctx, sub)

	s.logger.InfoContext(ctx, "subscription created", "user_id", userID, "plan", sub.PlanID)
	return sub, nil
}

// GetSubscription loads userID's subscription. While the document store is
// unavailable the last cached copy is returned instead.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}

	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			if cached, ok := s.cache.load(ctx, userID); ok {
				s.metrics.Counter(observability.MetricCacheFallbacks, 1)
				s.logger.WarnContext(ctx, "document store unavailable, serving cached subscription",
					"user_id", userID,
					"error", err,
				)
				return cached, nil
			}
		}
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}

	s.cache.store(ctx, sub)
	return sub, nil
}

// CanAccessModule reports whether userID may open module.
func (s *Service) CanAccessModule(ctx context.Context, userID string, module domain.Module) (bool, error) {
	d, err := s.CheckModule(ctx, userID, module)
	if err != nil {
		return false, err
	}
	return d.Allowed(), nil
}

// CheckModule returns the module access decision for userID. An empty
// userID means the signed-in user.
func (s *Service) CheckModule(ctx context.Context, userID string, module domain.Module) (domain.Decision, error) {
	sub, err := s.subscriptionFor(ctx, userID)
	if err != nil {
		return domain.Decision{}, err
	}

	d, err := s.Evaluator(ctx).CheckModule(sub, module)
	if err != nil {
		return domain.Decision{}, err
	}
	s.recordDecision(d, observability.T("module", string(module)))
	return d, nil
}

// CanConsume decides whether userID may add delta units of resource. An
// empty userID means the signed-in user.
func (s *Service) CanConsume(ctx context.Context, userID string, resource domain.Resource, delta float64) (domain.Decision, error) {
	sub, err := s.subscriptionFor(ctx, userID)
	if err != nil {
		return domain.Decision{}, err
	}

	d, err := s.Evaluator(ctx).CanConsume(sub, resource, delta)
	if err != nil {
		return domain.Decision{}, err
	}
	s.recordDecision(d, observability.T("resource", string(resource)))
	return d, nil
}

// UsagePercentage returns how much of resource's limit userID has used.
func (s *Service) UsagePercentage(ctx context.Context, userID string, resource domain.Resource) (float64, error) {
	sub, err := s.subscriptionFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.Evaluator(ctx).UsagePercentage(sub, resource)
}

// ResolveUser returns userID, or the signed-in user when userID is empty.
func (s *Service) ResolveUser(ctx context.Context, userID string) (string, error) {
	if userID != "" {
		return userID, nil
	}
	if s.auth != nil {
		if id := s.auth.CurrentUserID(ctx); id != "" {
			return id, nil
		}
	}
	return "", domain.ErrNotAuthenticated
}

func (s *Service) subscriptionFor(ctx context.Context, userID string) (*domain.Subscription, error) {
	userID, err := s.ResolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.GetSubscription(ctx, userID)
}

// RefreshUsage recounts userID's usage and returns the updated subscription.
func (s *Service) RefreshUsage(ctx context.Context, userID string) (*domain.Subscription, UsageSnapshot, error) {
	sub, err := s.GetSubscription(ctx, userID)
	if err != nil {
		return nil, UsageSnapshot{}, err
	}
	return s.accountant.Refresh(ctx, sub)
}

// RefreshAll refreshes every known subscription and returns how many
// succeeded. Individual failures are logged and skipped.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	refreshed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		if _, _, err := s.RefreshUsage(ctx, id); err != nil {
			if !errors.Is(err, domain.ErrSubscriptionNotFound) && !errors.Is(err, domain.ErrRefreshSuperseded) {
				s.logger.WarnContext(ctx, "usage refresh failed", "user_id", id, "error", err)
			}
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Upgrade changes userID's plan. See PlanMutator.Upgrade.
func (s *Service) Upgrade(ctx context.Context, userID string, planID domain.PlanID) (*domain.Subscription, error) {
	return s.mutator.Upgrade(ctx, userID, planID)
}

// ChangeStatus changes userID's subscription status.
func (s *Service) ChangeStatus(ctx context.Context, userID string, status domain.SubscriptionStatus) (*domain.Subscription, error) {
	return s.mutator.ChangeStatus(ctx, userID, status)
}

// ExpireLapsed moves every subscription whose billing period has ended to
// past_due, or to canceled once the grace period is over too. It returns how
// many subscriptions changed status.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	expired := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		sub, changed, err := s.mutator.Expire(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "subscription expiry failed", "user_id", id, "error", err)
			continue
		}
		if changed {
			expired++
			s.logger.InfoContext(ctx, "lapsed subscription expired",
				"user_id", id,
				"plan", sub.PlanID,
				"status", sub.Status,
				"period_end", sub.CurrentPeriodEnd,
			)
		}
	}
	return expired, nil
}

// SubscriptionStats counts subscriptions by status and plan. Users whose
// subscription cannot be read are skipped.
func (s *Service) SubscriptionStats(ctx context.Context) (domain.SubscriptionStats, error) {
	stats := domain.NewSubscriptionStats()

	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("list users: %w", err)
	}

	now := s.now()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		sub, err := s.repo.FindByUserID(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "subscription not counted", "user_id", id, "error", err)
			continue
		}
		stats.Add(sub, now)
	}
	return stats, nil
}

// LoadCatalogOverrides applies the overrides stored in the key-value store on
// top of the built-in catalog. No stored overrides restores the defaults.
func (s *Service) LoadCatalogOverrides(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}

	raw, ok, err := s.kv.Get(ctx, CatalogOverridesKey)
	if err != nil {
		return fmt.Errorf("read catalog overrides: %w", err)
	}
	if !ok {
		raw = ""
	}
	return s.applyOverrides(ctx, raw)
}

// syncCatalog reloads the overrides when the stored value differs from the
// one in effect. Failures keep the current catalog.
func (s *Service) syncCatalog(ctx context.Context) {
	if s.kv == nil {
		return
	}

	raw, ok, err := s.kv.Get(ctx, CatalogOverridesKey)
	if err != nil {
		s.logger.DebugContext(ctx, "catalog overrides not checked", "error", err)
		return
	}
	if !ok {
		raw = ""
	}
	state := s.catalog.Load()
	if raw == state.raw {
		return
	}
	if err := s.applyOverrides(ctx, raw); err != nil {
		s.logger.WarnContext(ctx, "stored catalog overrides rejected, keeping current plans", "error", err)
		s.catalog.CompareAndSwap(state, &catalogState{raw: raw, catalog: state.catalog})
	}
}

func (s *Service) applyOverrides(ctx context.Context, raw string) error {
	if raw == "" {
		s.catalog.Store(&catalogState{catalog: domain.DefaultCatalog()})
		return nil
	}

	var overrides domain.CatalogOverrides
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return fmt.Errorf("%w: catalog overrides: %v", domain.ErrInvalidArgument, err)
	}

	catalog, err := domain.DefaultCatalog().WithOverrides(overrides)
	if err != nil {
		return err
	}
	s.catalog.Store(&catalogState{raw: raw, catalog: catalog})
	s.logger.InfoContext(ctx, "catalog overrides applied", "plans", len(overrides))
	return nil
}

// SaveCatalogOverrides validates, stores and applies overrides. The stored
// value never expires, and other processes pick it up on their next read.
func (s *Service) SaveCatalogOverrides(ctx context.Context, overrides domain.CatalogOverrides) error {
	catalog, err := domain.DefaultCatalog().WithOverrides(overrides)
	if err != nil {
		return err
	}

	data, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	if s.kv != nil {
		if err := s.kv.SetPersistent(ctx, CatalogOverridesKey, string(data)); err != nil {
			return fmt.Errorf("write catalog overrides: %w", err)
		}
	}

	s.catalog.Store(&catalogState{raw: string(data), catalog: catalog})
	s.notifyCatalogChanged(ctx, overrides)
	return nil
}

// ResetCatalogOverrides removes stored overrides and restores the defaults.
func (s *Service) ResetCatalogOverrides(ctx context.Context) error {
	if s.kv != nil {
		if err := s.kv.Remove(ctx, CatalogOverridesKey); err != nil {
			return fmt.Errorf("remove catalog overrides: %w", err)
		}
	}
	s.catalog.Store(&catalogState{catalog: domain.DefaultCatalog()})
	s.notifyCatalogChanged(ctx, nil)
	return nil
}

func (s *Service) notifyCatalogChanged(ctx context.Context, overrides domain.CatalogOverrides) {
	if s.notifier == nil {
		return
	}
	plans := make([]domain.PlanID, 0, len(overrides))
	for _, id := range domain.AllPlanIDs {
		if _, ok := overrides[id]; ok {
			plans = append(plans, id)
		}
	}
	s.notifier.Notify(ctx, domain.EventCatalogChanged, domain.CatalogChangedPayload{OverriddenPlans: plans})
}

func (s *Service) recordDecision(d domain.Decision, tags ...observability.Tag) {
	tags = append(tags, observability.T("kind", string(d.Kind)))
	s.metrics.Counter(observability.MetricDecisions, 1, tags...)
}
