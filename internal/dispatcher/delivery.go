package dispatcher

import (
	"context"
	"sync"
)

// Delivery is one inbound broker message. Transports implement it over their
// native message type.
type Delivery interface {
	// ID identifies the message in logs (delivery tag, partition/offset).
	ID() string
	Body() []byte
	// Ack settles the message as handled.
	Ack(ctx context.Context) error
	// Nack leaves the message for redelivery.
	Nack(ctx context.Context) error
	// WantsReply reports whether the sender waits for a reply.
	WantsReply() bool
	Reply(ctx context.Context, body []byte) error
}

// settleOnce guards a Delivery so that only the first Ack or Nack reaches the
// broker. Later calls return the first result.
type settleOnce struct {
	Delivery
	once sync.Once
	err  error
}

func newSettleOnce(d Delivery) *settleOnce {
	if s, ok := d.(*settleOnce); ok {
		return s
	}
	return &settleOnce{Delivery: d}
}

func (s *settleOnce) Ack(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.Delivery.Ack(ctx)
	})
	return s.err
}

func (s *settleOnce) Nack(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.Delivery.Nack(ctx)
	})
	return s.err
}
