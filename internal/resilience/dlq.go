package resilience

import (
	"time"
)

// DLQEntry is an invitation whose delivery exhausted its attempts. Entries
// are persisted so an operator can inspect and requeue them later.
type DLQEntry struct {
	ID           string    `json:"id"`
	InvitationID string    `json:"invitation_id"`
	BidCardID    string    `json:"bid_card_id"`
	Channel      string    `json:"channel"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// DLQFilter narrows dead letter queries. Zero fields match everything.
type DLQFilter struct {
	Channel   string `json:"channel,omitempty"`    // "sms", "email", or "" for all
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether the entry still has retry budget.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError labels err "transient" or "permanent", the classes the
// dead letter queue filters on.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}
