package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status InviteStatus
		want   string
	}{
		{InviteQueued, "queued"},
		{InviteSent, "sent"},
		{InviteResponded, "responded"},
		{InviteFailed, "failed"},
		{InviteOptedOut, "opted_out"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestInvitationValidate(t *testing.T) {
	t.Parallel()

	contractorID := "c-1"
	prospectID := "p-1"

	t.Run("contractor recipient", func(t *testing.T) {
		t.Parallel()
		inv := Invitation{BidCardID: "b-1", ContractorID: &contractorID, Channel: ChannelSMS}
		require.NoError(t, inv.Validate())
	})

	t.Run("prospect recipient", func(t *testing.T) {
		t.Parallel()
		inv := Invitation{BidCardID: "b-1", ProspectID: &prospectID, Channel: ChannelEmail}
		require.NoError(t, inv.Validate())
	})

	t.Run("both recipients", func(t *testing.T) {
		t.Parallel()
		inv := Invitation{BidCardID: "b-1", ContractorID: &contractorID, ProspectID: &prospectID, Channel: ChannelSMS}
		require.Error(t, inv.Validate())
	})

	t.Run("no recipient", func(t *testing.T) {
		t.Parallel()
		inv := Invitation{BidCardID: "b-1", Channel: ChannelSMS}
		require.Error(t, inv.Validate())
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()
		inv := Invitation{BidCardID: "b-1", ContractorID: &contractorID, Channel: Channel("fax")}
		err := inv.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid channel")
	})
}

func TestEscalationSummaryPartial(t *testing.T) {
	t.Parallel()

	t.Run("clean run", func(t *testing.T) {
		t.Parallel()
		s := EscalationSummary{Discovered: 8, ProspectsNew: 5, InvitationsQueued: 5}
		assert.False(t, s.Partial())
	})

	t.Run("lookup failures", func(t *testing.T) {
		t.Parallel()
		s := EscalationSummary{Discovered: 3, LookupFailures: 2}
		assert.True(t, s.Partial())
	})

	t.Run("invitation failures alone", func(t *testing.T) {
		t.Parallel()
		s := EscalationSummary{InvitationsQueued: 4, InvitationsFailed: 1}
		assert.False(t, s.Partial(), "only directory lookup failures mark a run partial")
	})
}
