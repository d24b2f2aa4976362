package dispatcher

import (
	"admin-backend/internal/apierrors"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// FakeDelivery records how the dispatcher settled it.
type FakeDelivery struct {
	Tag            string
	Payload        []byte
	ReplyRequested bool
	AckErr         error

	mu      sync.Mutex
	acks    int
	nacks   int
	replies [][]byte
}

// NewFakeMessage wraps an envelope for pattern and data. A non-empty
// requestID marks the message as request/reply.
func NewFakeMessage(t *testing.T, pattern string, data any, requestID string) *FakeDelivery {
	t.Helper()
	env := map[string]any{"pattern": pattern}
	if data != nil {
		env["data"] = data
	}
	if requestID != "" {
		env["id"] = requestID
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return &FakeDelivery{
		Tag:            fmt.Sprintf("%s-%s", pattern, requestID),
		Payload:        body,
		ReplyRequested: requestID != "",
	}
}

func (f *FakeDelivery) ID() string   { return f.Tag }
func (f *FakeDelivery) Body() []byte { return f.Payload }

func (f *FakeDelivery) Ack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return f.AckErr
}

func (f *FakeDelivery) Nack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	return nil
}

func (f *FakeDelivery) WantsReply() bool { return f.ReplyRequested }

func (f *FakeDelivery) Reply(_ context.Context, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ReplyRequested {
		return errors.New("reply not requested")
	}
	f.replies = append(f.replies, body)
	return nil
}

func (f *FakeDelivery) Counts() (acks, nacks int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acks, f.nacks
}

func (f *FakeDelivery) Replies() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.replies...)
}

// DecodedReply is a reply read back with a raw response.
type DecodedReply struct {
	ID         string                `json:"id"`
	Response   json.RawMessage       `json:"response"`
	Err        *apierrors.ErrorReply `json:"err"`
	IsDisposed bool                  `json:"isDisposed"`
}

// OnlyReply returns the single reply published for f.
func (f *FakeDelivery) OnlyReply(t *testing.T) DecodedReply {
	t.Helper()
	replies := f.Replies()
	require.Len(t, replies, 1)
	var reply DecodedReply
	require.NoError(t, json.Unmarshal(replies[0], &reply))
	return reply
}
