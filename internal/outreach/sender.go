package outreach

import (
	"context"

	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
)

// Sender delivers one invitation over a single channel. SMS and email
// gateways plug in here.
type Sender interface {
	Send(ctx context.Context, inv model.Invitation) error
}

// LogSender records deliveries in the log instead of calling a gateway.
// It stands in for real providers in development.
type LogSender struct {
	channel model.Channel
}

// NewLogSender creates a log-only sender for the channel.
func NewLogSender(channel model.Channel) *LogSender {
	return &LogSender{channel: channel}
}

// Send logs the delivery and succeeds.
func (s *LogSender) Send(_ context.Context, inv model.Invitation) error {
	zap.L().Info("invitation delivered",
		zap.String("channel", string(s.channel)),
		zap.String("invitation_id", inv.ID),
		zap.String("bid_card_id", inv.BidCardID),
	)
	return nil
}
