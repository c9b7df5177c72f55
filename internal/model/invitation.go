package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// Channel is the medium an invitation is delivered over.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
	ChannelInternal Channel = "internal"
)

// Valid reports whether c is a known delivery channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelInternal:
		return true
	}
	return false
}

// InviteStatus tracks an invitation through its delivery lifecycle.
type InviteStatus string

const (
	InviteQueued    InviteStatus = "queued"
	InviteSent      InviteStatus = "sent"
	InviteResponded InviteStatus = "responded"
	InviteFailed    InviteStatus = "failed"
	InviteOptedOut  InviteStatus = "opted_out"
)

// Invitation is one outreach attempt tying a bid card to exactly one
// recipient: either a platform contractor or a discovered prospect.
type Invitation struct {
	ID            string          `json:"id"`
	BidCardID     string          `json:"bid_card_id"`
	ContractorID  *string         `json:"contractor_id,omitempty"`
	ProspectID    *string         `json:"prospect_id,omitempty"`
	Channel       Channel         `json:"channel"`
	Status        InviteStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt *time.Time      `json:"last_attempt_at,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Response      json.RawMessage `json:"response,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validate enforces the recipient exclusivity rule: exactly one of
// ContractorID or ProspectID must be set, and the channel must be known.
func (i Invitation) Validate() error {
	if (i.ContractorID == nil) == (i.ProspectID == nil) {
		return eris.New("model: invitation requires exactly one of contractor_id or prospect_id")
	}
	if !i.Channel.Valid() {
		return eris.Errorf("model: invalid channel: %s", i.Channel)
	}
	return nil
}

// EscalationSummary reports what a single escalation run did for a bid
// card. Counts are cumulative across all keyword searches in the run.
type EscalationSummary struct {
	BidCardID          string `json:"bid_card_id"`
	Discovered         int    `json:"discovered"`
	ProspectsNew       int    `json:"prospects_new"`
	ProspectsReused    int    `json:"prospects_reused"`
	InvitationsQueued  int    `json:"invitations_queued"`
	InvitationsSkipped int    `json:"invitations_skipped"`
	InvitationsFailed  int    `json:"invitations_failed"`
	LookupFailures     int    `json:"lookup_failures"`
}

// Partial reports whether some directory lookups failed. A partial run
// still seeds whatever it found; callers treat this as a warning, not
// an error.
func (s EscalationSummary) Partial() bool {
	return s.LookupFailures > 0
}
