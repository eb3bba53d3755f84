package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// InProcessBus delivers events synchronously to handlers in the same
// process. It is the publisher for local mode, where no broker runs.
type InProcessBus struct {
	registry *Registry
	logger   *slog.Logger
}

// NewInProcessBus creates a new in-process bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{
		registry: NewRegistry(logger),
		logger:   logger,
	}
}

// Subscribe registers a handler.
func (b *InProcessBus) Subscribe(handler Handler) {
	b.registry.Register(handler)
}

// Publish decodes an envelope and dispatches it. Malformed payloads and
// handler failures are logged, never returned, so publishers are not coupled
// to subscriber health.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event := &Envelope{}
	if err := json.Unmarshal(payload, event); err != nil {
		b.logger.Error("failed to unmarshal event", "routing_key", routingKey, "error", err)
		return nil
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}

	_ = b.Dispatch(ctx, event)
	return nil
}

// Dispatch delivers an envelope and returns the handlers' joined error.
func (b *InProcessBus) Dispatch(ctx context.Context, event *Envelope) error {
	start := time.Now()
	err := b.registry.Dispatch(ctx, event)

	attrs := []any{
		"routing_key", event.RoutingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		b.logger.Error("event dispatch failed", append(attrs, "error", err)...)
		return err
	}
	b.logger.Debug("event dispatched", attrs...)
	return nil
}

// Registry returns the underlying handler registry.
func (b *InProcessBus) Registry() *Registry {
	return b.registry
}

// Close is a no-op.
func (b *InProcessBus) Close() error {
	return nil
}
