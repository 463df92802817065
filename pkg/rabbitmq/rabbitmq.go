package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

const (
	// OrderExchange is the topic exchange order events are published to.
	OrderExchange = "orders"
	// OrderQueue receives every order.* event.
	OrderQueue      = "order_queue"
	OrderBindingKey = "order.#"
)

// channel is the part of *amqp.Channel the client uses.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
// Publishing is serialized because an amqp channel is not safe for
// concurrent use.
type Client struct {
	conn    *amqp.Connection
	channel channel
	mu      sync.Mutex
	log     *zap.Logger
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL string
}

// NewClient connects to RabbitMQ and declares the order exchange, queue and
// binding.
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log = log.Named("rabbitmq")
	log.Info("RabbitMQ client connected",
		zap.String("exchange", OrderExchange),
		zap.String("queue", OrderQueue),
	)
	return &Client{conn: conn, channel: ch, log: log}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		OrderExchange, // name
		"topic",       // kind
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s exchange: %w", OrderExchange, err)
	}
	if _, err := ch.QueueDeclare(
		OrderQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		return fmt.Errorf("failed to declare %s: %w", OrderQueue, err)
	}
	if err := ch.QueueBind(OrderQueue, OrderBindingKey, OrderExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", OrderQueue, err)
	}
	return nil
}

// Ping reports whether the connection is still open.
func (c *Client) Ping() error {
	if c.conn != nil && c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message to the order exchange.
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available")
	}

	c.mu.Lock()
	err := c.channel.Publish(
		OrderExchange, // exchange
		routingKey,    // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	c.log.Debug("Published order event", zap.String("routing_key", routingKey), zap.Int("bytes", len(body)))
	return nil
}

// ConsumeOrderEvents delivers messages from the order queue to handler until
// ctx is cancelled or the channel closes. Messages are acked on success and
// requeued on failure, except for redeliveries which are dropped.
func (c *Client) ConsumeOrderEvents(ctx context.Context, handler func(msg amqp.Delivery) error) error {
	if c.channel == nil {
		return errors.New("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		OrderQueue, // queue
		"",         // consumer
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.log.Info("Waiting for order events", zap.String("queue", OrderQueue))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("order event channel closed")
			}
			c.dispatch(msg, handler)
		}
	}
}

func (c *Client) dispatch(msg amqp.Delivery, handler func(msg amqp.Delivery) error) {
	log := c.log.With(zap.Uint64("delivery_tag", msg.DeliveryTag), zap.String("routing_key", msg.RoutingKey))
	if err := handler(msg); err != nil {
		log.Error("Error processing message", zap.Bool("redelivered", msg.Redelivered), zap.Error(err))
		if nackErr := msg.Nack(false, !msg.Redelivered); nackErr != nil {
			log.Error("Error nacking message", zap.Error(nackErr))
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error("Error acking message", zap.Error(ackErr))
	}
}
