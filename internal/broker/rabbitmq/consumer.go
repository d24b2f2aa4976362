// Package rabbitmq feeds a RabbitMQ queue into the dispatcher with manual
// acknowledgment, and publishes replies to each request's reply queue.
package rabbitmq

import (
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/observability"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

// Config holds configuration for the RabbitMQ consumer.
type Config struct {
	URL string
	// Queue is declared durable if it does not exist.
	Queue string
	// Prefetch caps unacknowledged deliveries held by this consumer.
	Prefetch int
}

// publisher is the part of *amqp.Channel used for replies.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer owns one connection with a consuming channel and a reply channel.
type Consumer struct {
	config Config
	logger *observability.Logger
	tag    string

	mu      sync.Mutex
	conn    *amqp.Connection
	consume *amqp.Channel
	replies *amqp.Channel
}

// Dial connects, sets the prefetch window and declares the queue.
func Dial(config Config, logger *observability.Logger) (*Consumer, error) {
	if config.Prefetch <= 0 {
		config.Prefetch = 10
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	consume, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	if err := consume.Qos(config.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}
	if _, err := consume.QueueDeclare(
		config.Queue, // name
		true,         // durable
		false,        // auto-delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", config.Queue, err)
	}

	replies, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create reply channel: %w", err)
	}

	return &Consumer{
		config:  config,
		logger:  logger,
		tag:     "admin-backend-" + uuid.New().String(),
		conn:    conn,
		consume: consume,
		replies: replies,
	}, nil
}

// Consume hands every delivery to submit until ctx is cancelled or the
// connection drops. Deliveries already submitted keep a usable channel
// until Close.
func (c *Consumer) Consume(ctx context.Context, submit func(context.Context, dispatcher.Delivery) error) error {
	deliveries, err := c.consume.Consume(
		c.config.Queue, // queue
		c.tag,          // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming %s: %w", c.config.Queue, err)
	}

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "broker", Value: "rabbitmq"},
		observability.Field{Key: "queue", Value: c.config.Queue},
	)
	c.logger.Info(ctx, fmt.Sprintf("Consuming queue %s with prefetch %d", c.config.Queue, c.config.Prefetch))

	err = forward(ctx, deliveries, c.replies, submit)
	if errors.Is(err, context.Canceled) {
		if cancelErr := c.consume.Cancel(c.tag, false); cancelErr != nil {
			c.logger.Error(ctx, "failed to cancel consumer", cancelErr)
		}
	}
	return err
}

// forward wraps each amqp delivery and submits it.
func forward(ctx context.Context, deliveries <-chan amqp.Delivery, pub publisher, submit func(context.Context, dispatcher.Delivery) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			if err := submit(ctx, &delivery{msg: msg, pub: pub}); err != nil {
				return err
			}
		}
	}
}

// Ping reports whether the connection is still open.
func (c *Consumer) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close closes both channels and the connection. Unacknowledged deliveries
// return to the queue.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for _, ch := range []*amqp.Channel{c.replies, c.consume} {
		if ch != nil {
			if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				errs = append(errs, err)
			}
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.replies, c.consume, c.conn = nil, nil, nil
	return errors.Join(errs...)
}

// delivery adapts amqp.Delivery to dispatcher.Delivery.
type delivery struct {
	msg amqp.Delivery
	pub publisher
}

func (d *delivery) ID() string { return strconv.FormatUint(d.msg.DeliveryTag, 10) }

func (d *delivery) Body() []byte { return d.msg.Body }

func (d *delivery) Ack(context.Context) error { return d.msg.Ack(false) }

// Nack requeues the message.
func (d *delivery) Nack(context.Context) error { return d.msg.Nack(false, true) }

func (d *delivery) WantsReply() bool { return d.msg.ReplyTo != "" }

func (d *delivery) Reply(ctx context.Context, body []byte) error {
	err := d.pub.PublishWithContext(ctx,
		"",            // default exchange
		d.msg.ReplyTo, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: d.msg.CorrelationId,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish reply to %s: %w", d.msg.ReplyTo, err)
	}
	return nil
}
