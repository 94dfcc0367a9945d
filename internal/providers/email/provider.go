package email

import (
	"context"
	"errors"
)

// Message is one outbound transactional email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Result is delivered exactly once per Send.
type Result struct {
	Sent      bool
	MessageID string
	Err       error
}

// Sender queues a message and reports the outcome on the returned channel.
type Sender interface {
	Send(ctx context.Context, msg Message) <-chan Result
}

// Transport performs a single synchronous delivery.
type Transport interface {
	Name() string
	Deliver(ctx context.Context, msg Message) (string, error)
}

var ErrNotConfigured = errors.New("email transport not configured")

type NoOpTransport struct{}

func (NoOpTransport) Name() string { return "noop" }

func (NoOpTransport) Deliver(ctx context.Context, msg Message) (string, error) {
	return "", ErrNotConfigured
}
