// Package queue provides the message broker port consumed by the invoice
// pipeline and its transports: Redis Streams for deployments and an
// in-process broker for development and tests.
package queue

import (
	"context"
	"errors"
	"time"
)

// PropertyInvoiceID is the application property carrying the invoice id.
// It is informational; the body is authoritative.
const PropertyInvoiceID = "InvoiceId"

// Errors returned by brokers
var (
	ErrClosed         = errors.New("queue: broker closed")
	ErrUnknownMessage = errors.New("queue: message is not in flight")
)

// Message is one delivery of a queued invoice. DeliveryCount starts at 1 on
// the first delivery and grows with every redelivery.
type Message struct {
	ID            string
	Body          []byte
	DeliveryCount int
	Properties    map[string]string
	EnqueuedAt    time.Time
}

// InvoiceID returns the informational invoice id property, if any
func (m *Message) InvoiceID() string {
	if m == nil || m.Properties == nil {
		return ""
	}
	return m.Properties[PropertyInvoiceID]
}

// Broker is the queue port. Receive blocks until a message is available,
// the broker's poll interval passes (nil message, nil error) or ctx is done.
// Every received message must be settled exactly once with Complete,
// Abandon or DeadLetter.
type Broker interface {
	Receive(ctx context.Context) (*Message, error)
	Complete(ctx context.Context, msg *Message) error
	Abandon(ctx context.Context, msg *Message) error
	DeadLetter(ctx context.Context, msg *Message, reason, description string) error
	Ping(ctx context.Context) error
	Close() error
}

// Publisher enqueues new messages
type Publisher interface {
	Publish(ctx context.Context, body []byte, properties map[string]string) (string, error)
}

// DeadLetter is a message moved off the main queue
type DeadLetter struct {
	Message     Message
	Reason      string
	Description string
	At          time.Time
}
