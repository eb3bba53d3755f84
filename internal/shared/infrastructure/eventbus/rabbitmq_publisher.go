package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes envelopes to a RabbitMQ topic exchange as
// persistent JSON messages.
type RabbitMQPublisher struct {
	link   *brokerLink
	logger *slog.Logger
	mu     sync.Mutex
}

// NewRabbitMQPublisher dials url and declares the exchange. An empty
// exchange selects ExchangeName.
func NewRabbitMQPublisher(url, exchange string, logger *slog.Logger) (*RabbitMQPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	link, err := openBrokerLink(url, exchange)
	if err != nil {
		return nil, err
	}
	logger.Info("RabbitMQ publisher connected", "exchange", link.exchange)
	return &RabbitMQPublisher{link: link, logger: logger}, nil
}

// Publish sends payload to the exchange under routingKey.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		AppId:        appID,
		Body:         payload,
	}

	p.mu.Lock()
	err := p.link.channel.PublishWithContext(ctx, p.link.exchange, routingKey, false, false, msg)
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("failed to publish message", "routing_key", routingKey, "error", err)
		return err
	}
	p.logger.Debug("message published", "routing_key", routingKey, "bytes", len(payload))
	return nil
}

// IsClosed reports whether the broker connection has been lost.
func (p *RabbitMQPublisher) IsClosed() bool {
	return p.link.closed()
}

// Close closes the publisher connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.link.close(p.logger); err != nil {
		return err
	}
	p.logger.Info("RabbitMQ publisher closed")
	return nil
}
