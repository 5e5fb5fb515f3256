package invoice

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func outcomePtr(o SyncOutcome) *SyncOutcome { return &o }

func TestRetryPolicy_Decide(t *testing.T) {
	policy := NewRetryPolicy(3)
	boom := errors.New("boom")

	tests := []struct {
		name    string
		attempt DeliveryAttempt
		want    Decision
	}{
		{
			name:    "decode failure dead-letters on first delivery",
			attempt: DeliveryAttempt{DeliveryCount: 0, DecodeErr: ErrMalformedPayload},
			want:    Decision{Action: ActionDeadLetter, Reason: ReasonDeserializationFailed, Description: ErrMalformedPayload.Error()},
		},
		{
			name:    "synced completes",
			attempt: DeliveryAttempt{DeliveryCount: 1, Outcome: outcomePtr(Synced("ext-1"))},
			want:    Decision{Action: ActionComplete},
		},
		{
			name:    "retryable abandons below the cap",
			attempt: DeliveryAttempt{DeliveryCount: 1, Outcome: outcomePtr(Retryable("429"))},
			want:    Decision{Action: ActionAbandon},
		},
		{
			name:    "retryable abandons past the cap",
			attempt: DeliveryAttempt{DeliveryCount: 10, Outcome: outcomePtr(Retryable("503"))},
			want:    Decision{Action: ActionAbandon},
		},
		{
			name:    "failed dead-letters with the outcome message",
			attempt: DeliveryAttempt{DeliveryCount: 1, Outcome: outcomePtr(Failed("HTTP 400: bad contact"))},
			want:    Decision{Action: ActionDeadLetter, Reason: ReasonPermanentFailure, Description: "HTTP 400: bad contact"},
		},
		{
			name:    "unknown status dead-letters",
			attempt: DeliveryAttempt{DeliveryCount: 1, Outcome: outcomePtr(SyncOutcome{Status: "PENDING"})},
			want:    Decision{Action: ActionDeadLetter, Reason: ReasonUnknownStatus, Description: "unknown sync status PENDING"},
		},
		{
			name:    "unexpected error below the cap abandons",
			attempt: DeliveryAttempt{DeliveryCount: 1, Err: boom},
			want:    Decision{Action: ActionAbandon},
		},
		{
			name:    "unexpected error at the cap dead-letters",
			attempt: DeliveryAttempt{DeliveryCount: 3, Err: boom},
			want:    Decision{Action: ActionDeadLetter, Reason: ReasonMaxRetriesExceeded, Description: "boom"},
		},
		{
			name:    "missing outcome counts as unexpected error",
			attempt: DeliveryAttempt{DeliveryCount: 3},
			want:    Decision{Action: ActionDeadLetter, Reason: ReasonMaxRetriesExceeded, Description: errNoOutcome.Error()},
		},
		{
			name:    "cancellation always abandons",
			attempt: DeliveryAttempt{DeliveryCount: 5, Err: boom, Cancelled: true},
			want:    Decision{Action: ActionAbandon},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.attempt))
		})
	}
}

func TestNewRetryPolicy_Default(t *testing.T) {
	assert.Equal(t, DefaultMaxDeliveryCount, NewRetryPolicy(0).MaxDeliveryCount)
	assert.Equal(t, DefaultMaxDeliveryCount, NewRetryPolicy(-1).MaxDeliveryCount)
	assert.Equal(t, 5, NewRetryPolicy(5).MaxDeliveryCount)

	// zero value behaves like the default
	var p RetryPolicy
	assert.Equal(t, ActionAbandon, p.Decide(DeliveryAttempt{DeliveryCount: 2, Err: errors.New("x")}).Action)
	assert.Equal(t, ActionDeadLetter, p.Decide(DeliveryAttempt{DeliveryCount: 3, Err: errors.New("x")}).Action)
}
