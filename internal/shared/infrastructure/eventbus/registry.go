package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Registry maps routing keys to handlers.
type Registry struct {
	handlers map[string][]Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Register adds a handler for its declared event types.
func (r *Registry) Register(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range handler.EventTypes() {
		r.handlers[eventType] = append(r.handlers[eventType], handler)
		r.logger.Debug("registered handler", "event_type", eventType)
	}
}

// Handlers returns the handlers registered for eventType.
func (r *Registry) Handlers(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Handler(nil), r.handlers[eventType]...)
}

// EventTypes returns every routing key with at least one handler.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch delivers event to every handler for its routing key. All handlers
// run even if one fails; the returned error joins their failures.
func (r *Registry) Dispatch(ctx context.Context, event *Envelope) error {
	handlers := r.Handlers(event.RoutingKey)
	if len(handlers) == 0 {
		r.logger.Debug("no handlers for event type", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			r.logger.Error("handler failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of registrations across all event types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, hs := range r.handlers {
		count += len(hs)
	}
	return count
}
