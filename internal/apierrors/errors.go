package apierrors

import (
	"errors"
)

var (
	// ErrInvalidPayload marks a message body that can never be processed.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrUnknownPattern marks a message whose pattern has no route.
	ErrUnknownPattern = errors.New("unknown pattern")
)

// RemoteError is the caller-facing form of any failure crossing the service
// boundary. Only the message text travels in replies; the cause is kept for
// in-process inspection with errors.Is and errors.As.
type RemoteError struct {
	Message string
	cause   error
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	return e.cause
}

// Wrap converts err into a RemoteError carrying its message. A nil err or an
// existing RemoteError is returned as is.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return err
	}
	return &RemoteError{Message: err.Error(), cause: err}
}

// New returns a RemoteError with a message and no cause.
func New(message string) *RemoteError {
	return &RemoteError{Message: message}
}

// ErrorReply is the error body sent back on request/reply patterns.
type ErrorReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Reply renders err as the error body of a reply.
func Reply(err error) *ErrorReply {
	if err == nil {
		return nil
	}
	return &ErrorReply{Status: "error", Message: err.Error()}
}
