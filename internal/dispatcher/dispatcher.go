// Package dispatcher routes broker messages to handlers by pattern and
// settles each message according to the outcome.
package dispatcher

import (
	"admin-backend/internal/apierrors"
	"admin-backend/internal/classifier"
	"admin-backend/internal/observability"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// AckPolicy decides which failed commands are acknowledged.
type AckPolicy string

const (
	// AckPolicyStrict acknowledges only duplicate-key conflicts; every other
	// failure is left for redelivery.
	AckPolicyStrict AckPolicy = "strict"
	// AckPolicyAckAll acknowledges every failure. Nothing is ever redelivered.
	AckPolicyAckAll AckPolicy = "ack-all"
)

// ParseAckPolicy maps a configuration value to an AckPolicy.
func ParseAckPolicy(s string) (AckPolicy, error) {
	switch AckPolicy(s) {
	case AckPolicyStrict, "":
		return AckPolicyStrict, nil
	case AckPolicyAckAll:
		return AckPolicyAckAll, nil
	default:
		return "", fmt.Errorf("unknown ack policy %q", s)
	}
}

// Outcome is the terminal state a delivery reached.
type Outcome int

const (
	OutcomeAckedSuccess Outcome = iota
	OutcomeAckedConflict
	// OutcomeAckedFailure is a non-conflict failure acknowledged under
	// AckPolicyAckAll.
	OutcomeAckedFailure
	OutcomeAckedMalformed
	OutcomeAckedUnknown
	OutcomeReplied
	OutcomeUnacked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAckedSuccess:
		return "acked-success"
	case OutcomeAckedConflict:
		return "acked-conflict"
	case OutcomeAckedFailure:
		return "acked-failure"
	case OutcomeAckedMalformed:
		return "acked-malformed"
	case OutcomeAckedUnknown:
		return "acked-unknown"
	case OutcomeReplied:
		return "replied"
	default:
		return "unacked"
	}
}

// CommandFunc handles a fire-and-forget message.
type CommandFunc func(ctx context.Context, data json.RawMessage) error

// QueryFunc handles a request/reply message. A nil result is replied as null.
type QueryFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Config holds the dispatcher settings.
type Config struct {
	// WorkerCount is the number of deliveries handled concurrently.
	WorkerCount int
	// QueueSize buffers deliveries between the source and the workers.
	QueueSize int
	// DrainTimeout bounds the wait for in-flight handlers on shutdown.
	DrainTimeout time.Duration
	AckPolicy    AckPolicy
	// Classify defaults to classifier.Classify.
	Classify classifier.Func
}

// DefaultConfig returns sensible defaults for a dispatcher.
func DefaultConfig() Config {
	return Config{
		WorkerCount:  10,
		QueueSize:    100,
		DrainTimeout: 30 * time.Second,
		AckPolicy:    AckPolicyStrict,
		Classify:     classifier.Classify,
	}
}

// Dispatcher holds the routing table. Register every pattern before Run; the
// table is read-only afterwards.
type Dispatcher struct {
	config   Config
	commands map[string]CommandFunc
	queries  map[string]QueryFunc
	logger   *observability.Logger
}

func New(config Config, logger *observability.Logger) *Dispatcher {
	defaults := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}
	if config.AckPolicy == "" {
		config.AckPolicy = defaults.AckPolicy
	}
	if config.Classify == nil {
		config.Classify = defaults.Classify
	}

	return &Dispatcher{
		config:   config,
		commands: make(map[string]CommandFunc),
		queries:  make(map[string]QueryFunc),
		logger:   logger,
	}
}

// HandleCommand registers a fire-and-forget handler for pattern.
func (d *Dispatcher) HandleCommand(pattern string, fn CommandFunc) {
	d.mustBeFree(pattern)
	d.commands[pattern] = fn
}

// HandleQuery registers a request/reply handler for pattern.
func (d *Dispatcher) HandleQuery(pattern string, fn QueryFunc) {
	d.mustBeFree(pattern)
	d.queries[pattern] = fn
}

func (d *Dispatcher) mustBeFree(pattern string) {
	_, isCommand := d.commands[pattern]
	_, isQuery := d.queries[pattern]
	if isCommand || isQuery {
		panic(fmt.Sprintf("dispatcher: pattern %q registered twice", pattern))
	}
}

// Patterns lists the registered patterns.
func (d *Dispatcher) Patterns() []string {
	patterns := make([]string, 0, len(d.commands)+len(d.queries))
	for p := range d.commands {
		patterns = append(patterns, p)
	}
	for p := range d.queries {
		patterns = append(patterns, p)
	}
	return patterns
}

// Dispatch handles one delivery to completion and settles it exactly once.
func (d *Dispatcher) Dispatch(ctx context.Context, delivery Delivery) Outcome {
	msg := newSettleOnce(delivery)
	ctx = observability.WithFields(ctx, observability.Field{Key: "delivery_id", Value: msg.ID()})

	env, err := DecodeEnvelope(msg.Body())
	if err != nil {
		d.logger.Error(ctx, "failed to decode message, skipping", err)
		d.replyIfWanted(ctx, msg, env.ID, nil, apierrors.Invalid(err))
		d.ack(ctx, msg)
		return OutcomeAckedMalformed
	}

	ctx = observability.WithFields(ctx, observability.Field{Key: "pattern", Value: env.Pattern})

	if query, ok := d.queries[env.Pattern]; ok {
		return d.query(ctx, msg, env, query)
	}
	if command, ok := d.commands[env.Pattern]; ok {
		return d.command(ctx, msg, env, command)
	}

	d.logger.Warn(ctx, "no handler registered for pattern, skipping")
	d.replyIfWanted(ctx, msg, env.ID, nil,
		apierrors.Wrap(fmt.Errorf("%w: %s", apierrors.ErrUnknownPattern, env.Pattern)))
	d.ack(ctx, msg)
	return OutcomeAckedUnknown
}

func (d *Dispatcher) command(ctx context.Context, msg *settleOnce, env Envelope, fn CommandFunc) Outcome {
	err := d.callCommand(ctx, fn, env.Data)
	if err == nil {
		d.ack(ctx, msg)
		return OutcomeAckedSuccess
	}

	if errors.Is(err, apierrors.ErrInvalidPayload) {
		d.logger.Error(ctx, "invalid payload, skipping", err)
		d.ack(ctx, msg)
		return OutcomeAckedMalformed
	}

	class := d.config.Classify(err)
	ctx = observability.WithFields(ctx, observability.Field{Key: "error_class", Value: class.String()})

	switch {
	case class == classifier.Conflict:
		d.logger.InfoWithError(ctx, "duplicate record, acknowledging", err)
		d.ack(ctx, msg)
		return OutcomeAckedConflict
	case d.config.AckPolicy == AckPolicyAckAll:
		d.logger.Error(ctx, "command failed, acknowledging", err)
		d.ack(ctx, msg)
		return OutcomeAckedFailure
	default:
		d.logger.Error(ctx, "command failed, leaving for redelivery", err)
		if nackErr := msg.Nack(ctx); nackErr != nil {
			d.logger.Error(ctx, "failed to nack message", nackErr)
		}
		return OutcomeUnacked
	}
}

func (d *Dispatcher) query(ctx context.Context, msg *settleOnce, env Envelope, fn QueryFunc) Outcome {
	defer d.ack(ctx, msg)

	result, err := d.callQuery(ctx, fn, env.Data)
	if err != nil {
		d.logger.Error(ctx, "query failed", err)
	}
	d.replyIfWanted(ctx, msg, env.ID, result, err)
	return OutcomeReplied
}

func (d *Dispatcher) callCommand(ctx context.Context, fn CommandFunc, data json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(ctx, data)
}

func (d *Dispatcher) callQuery(ctx context.Context, fn QueryFunc, data json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, apierrors.Wrap(fmt.Errorf("handler panicked: %v", r))
		}
	}()
	return fn(ctx, data)
}

func (d *Dispatcher) replyIfWanted(ctx context.Context, msg Delivery, id string, response any, replyErr error) {
	if !msg.WantsReply() {
		return
	}
	body, err := EncodeReply(id, response, replyErr)
	if err != nil {
		d.logger.Error(ctx, "failed to encode reply", err)
		body, err = EncodeReply(id, nil, apierrors.Wrap(err))
		if err != nil {
			return
		}
	}
	if err := msg.Reply(ctx, body); err != nil {
		d.logger.Error(ctx, "failed to publish reply", err)
	}
}

func (d *Dispatcher) ack(ctx context.Context, msg Delivery) {
	if err := msg.Ack(ctx); err != nil {
		d.logger.Error(ctx, "failed to ack message", err)
	}
}
