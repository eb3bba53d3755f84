package uisync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/axyra/membership/internal/membership/domain"
	"github.com/axyra/membership/internal/shared/infrastructure/eventbus"
)

// Renderer displays a view, e.g. by pushing it to browser tabs.
type Renderer interface {
	Render(ctx context.Context, view View) error
	// Users lists the users currently watching a view.
	Users() []string
}

// SubscriptionSource supplies current subscriptions and the evaluator to
// judge them with.
type SubscriptionSource interface {
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	Evaluator(ctx context.Context) *domain.Evaluator
}

// Syncer rebuilds a user's view whenever their plan, status or usage changes.
type Syncer struct {
	source   SubscriptionSource
	renderer Renderer
	logger   *slog.Logger
}

// NewSyncer creates a new Syncer.
func NewSyncer(source SubscriptionSource, renderer Renderer, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{source: source, renderer: renderer, logger: logger}
}

// EventTypes returns the membership events that change the view.
func (s *Syncer) EventTypes() []string {
	return []string{
		domain.EventPlanChanged,
		domain.EventStatusChanged,
		domain.EventUsageRefreshed,
		domain.EventCatalogChanged,
	}
}

// Handle re-renders the view of the event's user. A catalog change
// re-renders every watched view.
func (s *Syncer) Handle(ctx context.Context, event *eventbus.Envelope) error {
	if event.RoutingKey == domain.EventCatalogChanged {
		return s.SyncAll(ctx)
	}

	userID := event.Subject
	if userID == "" {
		payload, err := domain.DecodePayload[domain.PlanChangedPayload](event.Payload)
		if err != nil {
			return fmt.Errorf("decode %s: %w", event.RoutingKey, err)
		}
		userID = payload.UserID
	}
	if userID == "" {
		s.logger.WarnContext(ctx, "event without user, skipping", "routing_key", event.RoutingKey)
		return nil
	}

	return s.Sync(ctx, userID)
}

// Sync builds and renders the current view for userID.
func (s *Syncer) Sync(ctx context.Context, userID string) error {
	view, err := s.View(ctx, userID)
	if err != nil {
		return err
	}
	return s.renderer.Render(ctx, view)
}

// SyncAll re-renders the view of every watching user.
func (s *Syncer) SyncAll(ctx context.Context) error {
	var errs []error
	for _, userID := range s.renderer.Users() {
		if err := s.Sync(ctx, userID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// View builds the current view for userID without rendering it.
func (s *Syncer) View(ctx context.Context, userID string) (View, error) {
	sub, err := s.source.GetSubscription(ctx, userID)
	if err != nil {
		return View{}, fmt.Errorf("load subscription %s: %w", userID, err)
	}
	return BuildView(s.source.Evaluator(ctx), sub)
}
