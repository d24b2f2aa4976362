package dispatcher

import (
	"admin-backend/internal/apierrors"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the inbound message body: a routing pattern, its payload and,
// for request/reply, the id the reply must echo.
type Envelope struct {
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      string          `json:"id,omitempty"`
}

// Reply is the body published back to a requester.
type Reply struct {
	ID         string                `json:"id"`
	Response   any                   `json:"response"`
	Err        *apierrors.ErrorReply `json:"err"`
	IsDisposed bool                  `json:"isDisposed"`
}

var (
	errMissingPattern = errors.New("missing pattern")
	errEmptyPayload   = errors.New("empty payload")
)

// DecodeEnvelope parses a message body. The pattern may be a JSON string or
// any JSON value, which is then matched by its compact text.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var raw struct {
		Pattern json.RawMessage `json:"pattern"`
		Data    json.RawMessage `json:"data"`
		ID      string          `json:"id"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}

	env := Envelope{Data: raw.Data, ID: raw.ID}
	if len(raw.Pattern) == 0 || string(raw.Pattern) == "null" {
		return env, errMissingPattern
	}
	if err := json.Unmarshal(raw.Pattern, &env.Pattern); err != nil {
		env.Pattern = string(raw.Pattern)
	}
	if env.Pattern == "" {
		return env, errMissingPattern
	}
	return env, nil
}

// EncodeReply renders either a response or an error reply for id.
func EncodeReply(id string, response any, err error) ([]byte, error) {
	reply := Reply{ID: id, IsDisposed: true}
	if err != nil {
		reply.Err = apierrors.Reply(err)
	} else {
		reply.Response = response
	}
	return json.Marshal(reply)
}
