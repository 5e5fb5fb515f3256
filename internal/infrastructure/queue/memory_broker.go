package queue

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	msg Message
}

// MemoryBroker is an in-process broker. Abandoned messages go back to the
// end of the queue with their delivery count kept, so the next receive
// reports count+1. Settled messages are recorded for inspection.
type MemoryBroker struct {
	mu          sync.Mutex
	ready       []*memoryEntry
	inFlight    map[string]*memoryEntry
	completed   []Message
	deadLetters []DeadLetter
	closed      bool

	notify  chan struct{}
	closeCh chan struct{}
	now     func() time.Time
}

// Ensure MemoryBroker implements Broker and Publisher
var (
	_ Broker    = (*MemoryBroker)(nil)
	_ Publisher = (*MemoryBroker)(nil)
)

// NewMemoryBroker creates an empty in-process broker
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		inFlight: make(map[string]*memoryEntry),
		notify:   make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
		now:      time.Now,
	}
}

// Publish enqueues body with a fresh id
func (b *MemoryBroker) Publish(ctx context.Context, body []byte, properties map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	b.ready = append(b.ready, &memoryEntry{msg: Message{
		ID:         id,
		Body:       append([]byte(nil), body...),
		Properties: maps.Clone(properties),
		EnqueuedAt: b.now(),
	}})
	b.signal()
	return id, nil
}

// Receive blocks until a message is ready, ctx is done or the broker closes
func (b *MemoryBroker) Receive(ctx context.Context) (*Message, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		if len(b.ready) > 0 {
			entry := b.ready[0]
			b.ready = b.ready[1:]
			entry.msg.DeliveryCount++
			b.inFlight[entry.msg.ID] = entry
			if len(b.ready) > 0 {
				b.signal()
			}
			msg := entry.msg
			b.mu.Unlock()
			return &msg, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.closeCh:
			return nil, ErrClosed
		case <-b.notify:
		}
	}
}

// Complete removes msg from the queue
func (b *MemoryBroker) Complete(ctx context.Context, msg *Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.takeInFlight(msg)
	if err != nil {
		return err
	}
	b.completed = append(b.completed, entry.msg)
	return nil
}

// Abandon returns msg to the queue for redelivery
func (b *MemoryBroker) Abandon(ctx context.Context, msg *Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.takeInFlight(msg)
	if err != nil {
		return err
	}
	b.ready = append(b.ready, entry)
	b.signal()
	return nil
}

// DeadLetter moves msg off the queue with a reason
func (b *MemoryBroker) DeadLetter(ctx context.Context, msg *Message, reason, description string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, err := b.takeInFlight(msg)
	if err != nil {
		return err
	}
	b.deadLetters = append(b.deadLetters, DeadLetter{
		Message:     entry.msg,
		Reason:      reason,
		Description: description,
		At:          b.now(),
	})
	return nil
}

// Ping reports whether the broker is open
func (b *MemoryBroker) Ping(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close stops the broker and wakes blocked receivers
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.closeCh)
	}
	return nil
}

// Completed returns the completed messages in completion order
func (b *MemoryBroker) Completed() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.completed...)
}

// DeadLetters returns the dead-lettered messages in order
func (b *MemoryBroker) DeadLetters() []DeadLetter {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DeadLetter(nil), b.deadLetters...)
}

// Pending returns the number of messages waiting for delivery
func (b *MemoryBroker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ready)
}

// InFlight returns the number of received but unsettled messages
func (b *MemoryBroker) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inFlight)
}

// takeInFlight must be called with mu held
func (b *MemoryBroker) takeInFlight(msg *Message) (*memoryEntry, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrUnknownMessage)
	}
	entry, ok := b.inFlight[msg.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMessage, msg.ID)
	}
	delete(b.inFlight, msg.ID)
	return entry, nil
}

// signal must be called with mu held
func (b *MemoryBroker) signal() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
