package eventbus

import (
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName is the topic exchange membership events are published to.
	ExchangeName = "axyra.membership.events"

	// DefaultQueueName is the queue the worker binds for view synchronization.
	DefaultQueueName = "axyra.membership.uisync"

	appID = "axyra-membership"
)

// brokerLink is one AMQP connection with a single channel and a declared
// topic exchange.
type brokerLink struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func openBrokerLink(url, exchange string) (*brokerLink, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is empty")
	}
	if exchange == "" {
		exchange = ExchangeName
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	link := &brokerLink{conn: conn, exchange: exchange}

	if link.channel, err = conn.Channel(); err != nil {
		link.close(nil)
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// durable, not auto-deleted, not internal
	if err := link.channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		link.close(nil)
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return link, nil
}

func (l *brokerLink) closed() bool {
	return l == nil || l.conn == nil || l.conn.IsClosed()
}

// close shuts the channel and connection. Channel errors are only logged.
func (l *brokerLink) close(logger *slog.Logger) error {
	if l == nil {
		return nil
	}
	if l.channel != nil {
		if err := l.channel.Close(); err != nil && logger != nil {
			logger.Warn("error closing channel", "error", err)
		}
	}
	if l.conn == nil || l.conn.IsClosed() {
		return nil
	}
	return l.conn.Close()
}
