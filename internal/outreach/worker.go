package outreach

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/resilience"
)

// dlqRetryDelay is how long a dead-lettered invitation waits before an
// operator requeue pass may pick it up.
const dlqRetryDelay = 15 * time.Minute

// DeliveryStore is the persistence surface the delivery worker needs.
type DeliveryStore interface {
	ListQueuedInvitations(ctx context.Context, limit int) ([]model.Invitation, error)
	UpdateInvitationDelivery(ctx context.Context, id string, status model.InviteStatus, attempts int, reason string) error
	RequeueInvitation(ctx context.Context, id string) (bool, error)
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
}

// Worker drains queued invitations through per-channel senders. Transient
// send failures retry with backoff and count against the invitation's
// attempt budget; exhausted or permanently failed invitations move to
// failed with a dead-letter row. An open channel circuit leaves
// invitations queued without burning attempts.
type Worker struct {
	store    DeliveryStore
	senders  map[model.Channel]Sender
	breakers *resilience.ServiceBreakers
	retry    resilience.RetryConfig
	limiter  *rate.Limiter
	cfg      *config.DeliveryConfig
}

// NewWorker creates a delivery Worker with one sender per channel.
func NewWorker(st DeliveryStore, senders map[model.Channel]Sender, cfg *config.DeliveryConfig) *Worker {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	retry := resilience.FromRetryConfig(0, cfg.RetryBackoffMs)
	retry.OnRetry = resilience.RetryLogger("delivery", "send")
	return &Worker{
		store:    st,
		senders:  senders,
		breakers: resilience.NewServiceBreakers(resilience.FromCircuitConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs)),
		retry:    retry,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		cfg:      cfg,
	}
}

// Run polls for queued invitations until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "delivery"))

	interval := time.Duration(w.cfg.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	log.Info("delivery worker started", zap.Duration("poll_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.DeliverBatch(ctx); err != nil {
			log.Error("delivery pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Info("delivery worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DeliverBatch processes one batch of queued invitations and reports how
// many were delivered.
func (w *Worker) DeliverBatch(ctx context.Context) (int, error) {
	log := zap.L().With(zap.String("component", "delivery"))

	batch := w.cfg.BatchSize
	if batch <= 0 {
		batch = 25
	}

	invs, err := w.store.ListQueuedInvitations(ctx, batch)
	if err != nil {
		return 0, eris.Wrap(err, "outreach: list queued invitations")
	}

	delivered := 0
	for _, inv := range invs {
		if ctx.Err() != nil {
			break
		}
		if w.processOne(ctx, log, inv) {
			delivered++
		}
	}
	if len(invs) > 0 {
		log.Info("delivery pass complete", zap.Int("queued", len(invs)), zap.Int("delivered", delivered))
	}
	return delivered, nil
}

func (w *Worker) processOne(ctx context.Context, log *zap.Logger, inv model.Invitation) bool {
	channel := string(inv.Channel)
	attempts := inv.Attempts + 1

	sender, ok := w.senders[inv.Channel]
	if !ok {
		w.fail(ctx, log, inv, attempts, eris.Errorf("no sender registered for channel %s", channel), "permanent")
		return false
	}

	cb := w.breakers.Get(channel)
	err := cb.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, w.retry, func(ctx context.Context) error {
			if err := w.limiter.Wait(ctx); err != nil {
				return err
			}
			return sender.Send(ctx, inv)
		})
	})
	if err == nil {
		if uerr := w.store.UpdateInvitationDelivery(ctx, inv.ID, model.InviteSent, attempts, ""); uerr != nil {
			log.Warn("update invitation failed", zap.String("invitation_id", inv.ID), zap.Error(uerr))
		}
		return true
	}

	if errors.Is(err, resilience.ErrCircuitOpen) {
		log.Warn("channel circuit open, invitation stays queued",
			zap.String("invitation_id", inv.ID),
			zap.String("channel", channel),
		)
		return false
	}

	errType := resilience.ClassifyError(err)
	if errType == "permanent" || attempts >= w.maxAttempts() {
		w.fail(ctx, log, inv, attempts, err, errType)
		return false
	}

	// Transient with budget left: stays queued for the next pass.
	if uerr := w.store.UpdateInvitationDelivery(ctx, inv.ID, model.InviteQueued, attempts, err.Error()); uerr != nil {
		log.Warn("update invitation failed", zap.String("invitation_id", inv.ID), zap.Error(uerr))
	}
	log.Warn("delivery attempt failed",
		zap.String("invitation_id", inv.ID),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	return false
}

// RequeueDLQ returns dead-lettered invitations to the delivery queue.
// Only letters whose retry window has opened and whose budget remains
// are considered; each requeue is recorded on the letter so the budget
// caps how often an invitation can cycle back. Letters pointing at
// invitations that are no longer failed are dropped as stale.
func (w *Worker) RequeueDLQ(ctx context.Context, filter resilience.DLQFilter) (int, error) {
	log := zap.L().With(zap.String("component", "delivery"))

	entries, err := w.store.DequeueDLQ(ctx, filter)
	if err != nil {
		return 0, eris.Wrap(err, "outreach: dequeue dead letters")
	}

	requeued := 0
	now := time.Now().UTC()
	for _, e := range entries {
		if !e.CanRetry() {
			continue
		}
		ok, err := w.store.RequeueInvitation(ctx, e.InvitationID)
		if err != nil {
			log.Warn("requeue invitation failed",
				zap.String("invitation_id", e.InvitationID),
				zap.Error(err),
			)
			continue
		}
		if !ok {
			if err := w.store.RemoveDLQ(ctx, e.ID); err != nil {
				log.Warn("remove stale dead letter failed", zap.String("dlq_id", e.ID), zap.Error(err))
			}
			continue
		}
		if err := w.store.IncrementDLQRetry(ctx, e.ID, now.Add(dlqRetryDelay), e.Error); err != nil {
			log.Warn("record dead letter retry failed", zap.String("dlq_id", e.ID), zap.Error(err))
		}
		requeued++
	}

	if requeued > 0 {
		log.Info("dead letters requeued",
			zap.Int("requeued", requeued),
			zap.Int("inspected", len(entries)),
		)
	}
	return requeued, nil
}

// fail marks the invitation failed and dead-letters it for operator review.
func (w *Worker) fail(ctx context.Context, log *zap.Logger, inv model.Invitation, attempts int, sendErr error, errType string) {
	if err := w.store.UpdateInvitationDelivery(ctx, inv.ID, model.InviteFailed, attempts, sendErr.Error()); err != nil {
		log.Warn("update invitation failed", zap.String("invitation_id", inv.ID), zap.Error(err))
	}

	now := time.Now().UTC()
	entry := resilience.DLQEntry{
		ID:           uuid.New().String(),
		InvitationID: inv.ID,
		BidCardID:    inv.BidCardID,
		Channel:      string(inv.Channel),
		Error:        sendErr.Error(),
		ErrorType:    errType,
		MaxRetries:   w.maxAttempts(),
		NextRetryAt:  now.Add(dlqRetryDelay),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	if err := w.store.EnqueueDLQ(ctx, entry); err != nil {
		log.Error("enqueue dead letter failed", zap.String("invitation_id", inv.ID), zap.Error(err))
	}

	log.Warn("invitation dead-lettered",
		zap.String("invitation_id", inv.ID),
		zap.String("error_type", errType),
	)
}

func (w *Worker) maxAttempts() int {
	if w.cfg.MaxAttempts > 0 {
		return w.cfg.MaxAttempts
	}
	return 3
}
