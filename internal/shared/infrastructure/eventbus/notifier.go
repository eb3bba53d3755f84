package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/axyra/membership/pkg/observability"
)

// Subjecter is implemented by payloads that name the entity they concern.
type Subjecter interface {
	Subject() string
}

// Notifier adapts a Publisher to fire-and-forget notifications. Failures are
// logged and never returned to the caller.
type Notifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewNotifier creates a notifier that publishes through publisher.
func NewNotifier(publisher Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{publisher: publisher, logger: logger}
}

// Notify wraps payload in an envelope and publishes it under event.
func (n *Notifier) Notify(ctx context.Context, event string, payload any) {
	var subject string
	if s, ok := payload.(Subjecter); ok {
		subject = s.Subject()
	}

	env, err := NewEnvelope(event, subject, payload)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to build notification", "event", event, "error", err)
		return
	}
	env.Metadata.CorrelationID = observability.CorrelationIDFromContext(ctx)

	body, err := json.Marshal(env)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to encode notification", "event", event, "error", err)
		return
	}

	if err := n.publisher.Publish(ctx, event, body); err != nil {
		n.logger.WarnContext(ctx, "notification not delivered",
			"event", event,
			"subject", subject,
			"error", err,
		)
	}
}
