// Package kafka feeds a Kafka topic into the dispatcher. Offsets are committed
// on ack; a nack republishes the record to the retry topic before committing,
// since a single offset cannot be left uncommitted.
package kafka

import (
	"admin-backend/internal/dispatcher"
	"admin-backend/internal/observability"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderCorrelationID = "kafka_correlationId"
	HeaderReplyTopic    = "kafka_replyTopic"
	HeaderRetryCount    = "x-retry-count"
)

var ErrNoReplyTopic = errors.New("no reply topic configured")

// Config holds configuration for the Kafka consumer.
type Config struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
	// ReplyTopic is used when a request does not name its own reply topic.
	ReplyTopic string
	// RetryTopic receives nacked records. Defaults to Topic.
	RetryTopic string
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	config   Config
	reader   messageReader
	producer *Producer
	logger   *observability.Logger
}

func NewConsumer(config Config, producer *Producer, logger *observability.Logger) *Consumer {
	if config.RetryTopic == "" {
		config.RetryTopic = config.Topic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           config.Brokers,
		Topic:             config.Topic,
		GroupID:           config.ConsumerGroup,
		MinBytes:          1,
		MaxBytes:          10e6, // 10MB
		MaxWait:           10 * time.Second,
		StartOffset:       kafka.FirstOffset,
		CommitInterval:    0, // Manual commit
		SessionTimeout:    30 * time.Second,
		RebalanceTimeout:  30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	return &Consumer{
		config:   config,
		reader:   reader,
		producer: producer,
		logger:   logger,
	}
}

// Consume fetches records until ctx is cancelled and submits each one.
func (c *Consumer) Consume(ctx context.Context, submit func(context.Context, dispatcher.Delivery) error) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "broker", Value: "kafka"},
		observability.Field{Key: "topic", Value: c.config.Topic},
		observability.Field{Key: "consumer_group", Value: c.config.ConsumerGroup},
	)
	c.logger.Info(ctx, fmt.Sprintf("Consuming topic %s with group %s", c.config.Topic, c.config.ConsumerGroup))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error(ctx, "Failed to fetch message from Kafka", err)
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := submit(ctx, &delivery{msg: msg, consumer: c}); err != nil {
			return err
		}
	}
}

// Ping dials the first reachable broker.
func (c *Consumer) Ping(ctx context.Context) error {
	var errs []error
	for _, broker := range c.config.Brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return conn.Close()
	}
	return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// delivery adapts kafka.Message to dispatcher.Delivery.
type delivery struct {
	msg      kafka.Message
	consumer *Consumer
}

func (d *delivery) ID() string {
	return fmt.Sprintf("%s/%d/%d", d.msg.Topic, d.msg.Partition, d.msg.Offset)
}

func (d *delivery) Body() []byte { return d.msg.Value }

func (d *delivery) Ack(ctx context.Context) error {
	if err := d.consumer.reader.CommitMessages(ctx, d.msg); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", d.msg.Offset, err)
	}
	return nil
}

// Nack republishes the record with an incremented retry count and commits
// the consumed record. When the republish fails nothing is committed.
func (d *delivery) Nack(ctx context.Context) error {
	headers := make(map[string]string, len(d.msg.Headers)+1)
	for _, h := range d.msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	for _, k := range producerHeaders {
		delete(headers, k)
	}
	retries, _ := strconv.Atoi(headers[HeaderRetryCount])
	headers[HeaderRetryCount] = strconv.Itoa(retries + 1)

	if err := d.consumer.producer.Produce(ctx, Message{
		Topic:   d.consumer.config.RetryTopic,
		Key:     string(d.msg.Key),
		Value:   d.msg.Value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("failed to republish for retry: %w", err)
	}
	return d.Ack(ctx)
}

func (d *delivery) header(key string) string {
	for _, h := range d.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (d *delivery) WantsReply() bool { return d.header(HeaderCorrelationID) != "" }

func (d *delivery) Reply(ctx context.Context, body []byte) error {
	topic := d.header(HeaderReplyTopic)
	if topic == "" {
		topic = d.consumer.config.ReplyTopic
	}
	if topic == "" {
		return ErrNoReplyTopic
	}

	correlationID := d.header(HeaderCorrelationID)
	return d.consumer.producer.Produce(ctx, Message{
		Topic:   topic,
		Key:     correlationID,
		Value:   body,
		Headers: map[string]string{HeaderCorrelationID: correlationID},
	})
}
