package invoice

// SyncStatus classifies the result of one delivery attempt.
type SyncStatus string

const (
	// StatusSynced means the accounting system accepted the invoice.
	StatusSynced SyncStatus = "SYNCED"
	// StatusRetryable means the attempt failed for a transient reason.
	StatusRetryable SyncStatus = "RETRYABLE"
	// StatusFailed means the attempt failed permanently and must not be retried.
	StatusFailed SyncStatus = "FAILED"
)

// IsValid reports whether s is one of the known statuses.
func (s SyncStatus) IsValid() bool {
	switch s {
	case StatusSynced, StatusRetryable, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation.
func (s SyncStatus) String() string {
	return string(s)
}

// SyncOutcome is the classified result of one delivery attempt.
// ExternalID is only set when Success is true.
type SyncOutcome struct {
	Success      bool
	ExternalID   string
	ErrorMessage string
	Status       SyncStatus
}

// Synced returns a successful outcome carrying the id assigned by the
// accounting system.
func Synced(externalID string) SyncOutcome {
	return SyncOutcome{Success: true, ExternalID: externalID, Status: StatusSynced}
}

// Retryable returns a transient failure outcome.
func Retryable(message string) SyncOutcome {
	return SyncOutcome{ErrorMessage: message, Status: StatusRetryable}
}

// Failed returns a permanent failure outcome.
func Failed(message string) SyncOutcome {
	return SyncOutcome{ErrorMessage: message, Status: StatusFailed}
}
