package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/pkg/observability"
)

const bytesPerMiB = 1024 * 1024

// UsageSnapshot is the result of one usage refresh.
type UsageSnapshot struct {
	UserID      string
	Usage       map[domain.Resource]float64
	Failed      []domain.Resource
	RefreshedAt time.Time
}

// UsageAccountant measures per-user resource consumption from the document
// store and keeps the subscription's usage snapshot current.
type UsageAccountant struct {
	store    domain.DocumentStore
	repo     domain.SubscriptionRepository
	cache    *subscriptionCache
	notifier domain.Notifier
	logger   *slog.Logger
	metrics  observability.Metrics
	now      func() time.Time
	// locks is shared with the PlanMutator so usage writes never interleave
	// with a plan or status change.
	locks *userLocks

	mu       sync.Mutex
	seq      uint64
	inflight map[string]*refreshTicket
}

type refreshTicket struct {
	seq    uint64
	cancel context.CancelFunc
}

// AccountantConfig holds the collaborators of a UsageAccountant.
type AccountantConfig struct {
	Store    domain.DocumentStore
	Repo     domain.SubscriptionRepository
	Cache    domain.KeyValueStore
	Notifier domain.Notifier
	Logger   *slog.Logger
	Metrics  observability.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewUsageAccountant creates a new accountant.
func NewUsageAccountant(cfg AccountantConfig) *UsageAccountant {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &UsageAccountant{
		store:    cfg.Store,
		repo:     cfg.Repo,
		cache:    &subscriptionCache{kv: cfg.Cache, logger: cfg.Logger},
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		locks:    newUserLocks(),
		inflight: make(map[string]*refreshTicket),
	}
}

// Refresh recomputes every resource for sub's user and persists the result.
// Resources whose query fails keep their previous value and are listed in
// Failed. Starting a refresh cancels any older refresh for the same user; the
// older one returns domain.ErrRefreshSuperseded without writing.
//
// Only the usage fields are written. They are merged into the latest stored
// subscription, so a plan change committed while measuring is kept.
func (a *UsageAccountant) Refresh(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, UsageSnapshot, error) {
	if sub == nil || sub.UserID == "" {
		return nil, UsageSnapshot{}, domain.ErrInvalidArgument
	}

	parent := ctx
	ctx, ticket := a.begin(ctx, sub.UserID)
	defer a.end(sub.UserID, ticket)

	timer := observability.StartTimer("usage.refresh").WithMetrics(a.metrics)

	snapshot := a.measure(ctx, sub)

	if err := parent.Err(); err != nil {
		timer.StopWithError(err)
		return nil, UsageSnapshot{}, err
	}
	unlock, err := a.locks.acquire(ctx, sub.UserID)
	if err != nil {
		if perr := parent.Err(); perr != nil {
			timer.StopWithError(perr)
			return nil, UsageSnapshot{}, perr
		}
		return nil, UsageSnapshot{}, a.superseded(ctx, sub.UserID, timer)
	}
	defer unlock()

	// Holding the slot, a newer refresh can no longer write in between.
	if !a.isCurrent(sub.UserID, ticket) {
		return nil, UsageSnapshot{}, a.superseded(ctx, sub.UserID, timer)
	}

	updated := a.latest(parent, sub)
	for r, v := range snapshot.Usage {
		_ = updated.SetUsage(r, v)
	}
	updated.UsageUpdatedAt = snapshot.RefreshedAt

	if a.repo != nil {
		if err := a.repo.SaveUsage(parent, updated); err != nil {
			a.logger.WarnContext(parent, "usage snapshot not persisted", "user_id", sub.UserID, "error", err)
		}
	}
	a.cache.store(parent, updated)

	if a.notifier != nil {
		a.notifier.Notify(parent, domain.EventUsageRefreshed, domain.UsageRefreshedPayload{
			UserID: updated.UserID,
			Usage:  updated.Usage,
			Failed: snapshot.Failed,
		})
	}

	a.metrics.Counter(observability.MetricUsageRefreshes, 1)
	timer.Stop()

	return updated, snapshot, nil
}

func (a *UsageAccountant) superseded(ctx context.Context, userID string, timer *observability.Timer) error {
	a.metrics.Counter(observability.MetricUsageSuperseded, 1)
	a.logger.DebugContext(ctx, "usage refresh superseded", "user_id", userID)
	timer.StopWithError(domain.ErrRefreshSuperseded)
	return domain.ErrRefreshSuperseded
}

// latest returns the freshest known copy of sub: the stored one, else the
// cached one, else sub itself.
func (a *UsageAccountant) latest(ctx context.Context, sub *domain.Subscription) *domain.Subscription {
	if a.repo != nil {
		stored, err := a.repo.FindByUserID(ctx, sub.UserID)
		if err == nil && stored != nil {
			return stored
		}
		if err != nil {
			a.logger.DebugContext(ctx, "reload before usage write failed", "user_id", sub.UserID, "error", err)
		}
	}
	if cached, ok := a.cache.load(ctx, sub.UserID); ok {
		return cached
	}
	return sub.Clone()
}

// Measure queries the current usage of every resource without persisting
// anything. Failed resources report sub's stored value.
func (a *UsageAccountant) Measure(ctx context.Context, sub *domain.Subscription) UsageSnapshot {
	return a.measure(ctx, sub)
}

func (a *UsageAccountant) measure(ctx context.Context, sub *domain.Subscription) UsageSnapshot {
	now := a.now()
	snapshot := UsageSnapshot{
		UserID:      sub.UserID,
		Usage:       make(map[domain.Resource]float64, len(domain.AllResources)),
		RefreshedAt: now.UTC(),
	}

	for _, r := range domain.AllResources {
		value, err := a.query(ctx, sub.UserID, r, now)
		if err != nil {
			snapshot.Usage[r] = sub.UsageOf(r)
			snapshot.Failed = append(snapshot.Failed, r)
			a.metrics.Counter(observability.MetricUsageQueryFailures, 1, observability.T("resource", string(r)))
			if !errors.Is(err, context.Canceled) {
				a.logger.WarnContext(ctx, "usage query failed, keeping last value",
					"user_id", sub.UserID,
					"resource", r,
					"error", err,
				)
			}
			continue
		}
		snapshot.Usage[r] = value
		a.metrics.Gauge(observability.MetricUsageValue, value, observability.T("resource", string(r)))
	}

	return snapshot
}

func (a *UsageAccountant) query(ctx context.Context, userID string, r domain.Resource, now time.Time) (float64, error) {
	owner := domain.Eq("ownerId", userID)

	switch r {
	case domain.ResourceEmployees:
		n, err := a.store.CountWhere(ctx, domain.CollectionEmployees, domain.Filter{owner, domain.Eq("active", true)})
		return float64(n), err
	case domain.ResourcePayrollRuns:
		n, err := a.store.CountWhere(ctx, domain.CollectionPayrollRuns, domain.Filter{owner, domain.Gte("createdAt", MonthStartUTC(now))})
		return float64(n), err
	case domain.ResourceStorageMB:
		bytes, err := a.store.SumWhere(ctx, domain.CollectionFiles, domain.Filter{owner}, "sizeBytes")
		return bytes / bytesPerMiB, err
	default:
		return 0, domain.ErrInvalidArgument
	}
}

func (a *UsageAccountant) begin(ctx context.Context, userID string) (context.Context, *refreshTicket) {
	ctx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.inflight[userID]; ok {
		prev.cancel()
	}
	a.seq++
	ticket := &refreshTicket{seq: a.seq, cancel: cancel}
	a.inflight[userID] = ticket
	return ctx, ticket
}

func (a *UsageAccountant) isCurrent(userID string, ticket *refreshTicket) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.inflight[userID]
	return ok && current.seq == ticket.seq
}

func (a *UsageAccountant) end(userID string, ticket *refreshTicket) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if current, ok := a.inflight[userID]; ok && current.seq == ticket.seq {
		delete(a.inflight, userID)
	}
	ticket.cancel()
}

// MonthStartUTC returns midnight UTC on the first day of t's month.
func MonthStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
