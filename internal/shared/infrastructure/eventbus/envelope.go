package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of every event on the bus.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	RoutingKey string          `json:"routing_key"`
	Subject    string          `json:"subject,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
	Metadata   Metadata        `json:"metadata,omitempty"`
}

// Metadata carries the publisher's correlation id across process boundaries.
type Metadata struct {
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewEnvelope marshals payload into a new envelope. Subject names the entity
// the event is about, typically a user id.
func NewEnvelope(routingKey, subject string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", routingKey, err)
	}
	return &Envelope{
		EventID:    uuid.New(),
		RoutingKey: routingKey,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}, nil
}

// Handler processes events for a set of routing keys.
type Handler interface {
	// EventTypes returns the routing keys this handler subscribes to,
	// e.g. ["membership.plan_changed"].
	EventTypes() []string

	// Handle processes the event.
	Handle(ctx context.Context, event *Envelope) error
}

// Consumer receives events from a broker and dispatches them to handlers.
type Consumer interface {
	// Start begins consuming messages. This is a blocking call.
	Start(ctx context.Context) error

	// Subscribe registers a handler.
	Subscribe(handler Handler)

	// Close closes the consumer connection.
	Close() error
}
