package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/axyra/membership/pkg/observability"
)

var _ Consumer = (*RabbitMQConsumer)(nil)

// ErrConsumerRunning is returned by Start when the consumer is already started.
var ErrConsumerRunning = errors.New("consumer already running")

// RabbitMQConsumerConfig configures the RabbitMQ consumer.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exchange  string
	// Prefetch bounds unacknowledged deliveries. Zero means one.
	Prefetch int
	Logger   *slog.Logger
}

// RabbitMQConsumer drains a durable queue bound to the exchange and
// dispatches each envelope to the subscribed handlers.
type RabbitMQConsumer struct {
	link     *brokerLink
	queue    string
	prefetch int
	registry *Registry
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	stopped sync.Once
}

// NewRabbitMQConsumer dials the broker and declares the exchange and queue.
func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig) (*RabbitMQConsumer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.QueueName
	if queue == "" {
		queue = DefaultQueueName
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	link, err := openBrokerLink(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, err
	}
	// durable, not auto-deleted, not exclusive
	if _, err := link.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = link.close(logger)
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	logger.Info("RabbitMQ consumer connected", "queue", queue, "exchange", link.exchange)

	return &RabbitMQConsumer{
		link:     link,
		queue:    queue,
		prefetch: prefetch,
		registry: NewRegistry(logger),
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Subscribe registers handler and binds each of its routing keys to the queue.
// A failed binding is logged; the handler stays registered.
func (c *RabbitMQConsumer) Subscribe(handler Handler) {
	c.registry.Register(handler)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range handler.EventTypes() {
		if err := c.link.channel.QueueBind(c.queue, key, c.link.exchange, false, nil); err != nil {
			c.logger.Error("failed to bind queue", "queue", c.queue, "routing_key", key, "error", err)
			continue
		}
		c.logger.Debug("bound queue", "queue", c.queue, "routing_key", key)
	}
}

// Start consumes until ctx is cancelled or Close is called. It returns
// ctx.Err() on cancellation and nil after Close.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	deliveries, err := c.begin()
	if err != nil {
		return err
	}
	c.logger.Info("consuming membership events", "queue", c.queue, "handlers", c.registry.Count())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.settle(msg, c.handle(ctx, msg))
		}
	}
}

func (c *RabbitMQConsumer) begin() (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil, ErrConsumerRunning
	}
	if err := c.link.channel.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	// manual ack, not exclusive
	deliveries, err := c.link.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	c.running = true
	return deliveries, nil
}

type outcome int

const (
	outcomeAck outcome = iota
	outcomeDrop
	outcomeReject
)

// handle decodes and dispatches one delivery. Undecodable bodies are dropped;
// handler failures are rejected without requeue since views are rebuilt from
// current state on the next event.
func (c *RabbitMQConsumer) handle(ctx context.Context, msg amqp.Delivery) outcome {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.logger.Error("failed to decode envelope", "routing_key", msg.RoutingKey, "error", err)
		return outcomeDrop
	}
	if env.RoutingKey == "" {
		env.RoutingKey = msg.RoutingKey
	}
	ctx = observability.WithCorrelationID(ctx, env.Metadata.CorrelationID)
	if err := c.registry.Dispatch(ctx, &env); err != nil {
		return outcomeReject
	}
	return outcomeAck
}

func (c *RabbitMQConsumer) settle(msg amqp.Delivery, o outcome) {
	var err error
	switch o {
	case outcomeReject:
		err = msg.Nack(false, false)
	default:
		err = msg.Ack(false)
	}
	if err != nil {
		c.logger.Error("failed to settle delivery", "delivery_tag", msg.DeliveryTag, "error", err)
	}
}

// Close stops Start and closes the connection. It is safe to call twice.
func (c *RabbitMQConsumer) Close() error {
	c.stopped.Do(func() { close(c.stop) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if err := c.link.close(c.logger); err != nil {
		return err
	}
	c.logger.Info("RabbitMQ consumer closed")
	return nil
}
