package invoice

import "errors"

// DefaultMaxDeliveryCount is the delivery count at which an unexpected error
// stops being retried.
const DefaultMaxDeliveryCount = 3

// Action is what the pipeline does with a message after an attempt.
type Action string

const (
	ActionComplete   Action = "complete"
	ActionAbandon    Action = "abandon"
	ActionDeadLetter Action = "dead_letter"
)

// String returns the string representation.
func (a Action) String() string {
	return string(a)
}

// Dead-letter reasons.
const (
	ReasonDeserializationFailed = "DeserializationFailed"
	ReasonPermanentFailure      = "PermanentFailure"
	ReasonMaxRetriesExceeded    = "MaxRetriesExceeded"
	ReasonUnknownStatus         = "UnknownStatus"
)

var errNoOutcome = errors.New("invoice: sync produced no outcome")

// DeliveryAttempt captures everything known about one processing attempt of
// a message.
type DeliveryAttempt struct {
	// DeliveryCount is the broker-reported delivery count, starting at 1.
	DeliveryCount int
	// DecodeErr is set when the message body could not be decoded.
	DecodeErr error
	// Outcome is the classified result, nil when decoding failed or an
	// unexpected error escaped the sync call.
	Outcome *SyncOutcome
	// Err is an unexpected error (or recovered panic) escaping the sync call.
	Err error
	// Cancelled is set when processing stopped because of shutdown.
	Cancelled bool
}

// Decision is the queue action chosen for an attempt. Reason and Description
// are only set for dead letters.
type Decision struct {
	Action      Action
	Reason      string
	Description string
}

// RetryPolicy decides the queue action for an attempt. Classification alone
// governs retries of classified outcomes; MaxDeliveryCount only caps the
// unexpected-error path.
type RetryPolicy struct {
	MaxDeliveryCount int
}

// NewRetryPolicy returns a policy with the given cap, falling back to
// DefaultMaxDeliveryCount when maxCount is not positive.
func NewRetryPolicy(maxCount int) RetryPolicy {
	if maxCount <= 0 {
		maxCount = DefaultMaxDeliveryCount
	}
	return RetryPolicy{MaxDeliveryCount: maxCount}
}

// Decide maps an attempt to a queue action. It is a pure function.
func (p RetryPolicy) Decide(a DeliveryAttempt) Decision {
	if a.Cancelled {
		return Decision{Action: ActionAbandon}
	}
	if a.DecodeErr != nil {
		return deadLetter(ReasonDeserializationFailed, a.DecodeErr.Error())
	}
	if a.Err == nil && a.Outcome == nil {
		a.Err = errNoOutcome
	}
	if a.Err != nil {
		if a.DeliveryCount < p.maxDeliveryCount() {
			return Decision{Action: ActionAbandon}
		}
		return deadLetter(ReasonMaxRetriesExceeded, a.Err.Error())
	}

	switch a.Outcome.Status {
	case StatusSynced:
		return Decision{Action: ActionComplete}
	case StatusRetryable:
		return Decision{Action: ActionAbandon}
	case StatusFailed:
		return deadLetter(ReasonPermanentFailure, a.Outcome.ErrorMessage)
	default:
		return deadLetter(ReasonUnknownStatus, "unknown sync status "+string(a.Outcome.Status))
	}
}

func (p RetryPolicy) maxDeliveryCount() int {
	if p.MaxDeliveryCount <= 0 {
		return DefaultMaxDeliveryCount
	}
	return p.MaxDeliveryCount
}

func deadLetter(reason, description string) Decision {
	return Decision{Action: ActionDeadLetter, Reason: reason, Description: description}
}
