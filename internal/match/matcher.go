package match

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/geo"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
)

// Store is the persistence surface the matcher needs.
type Store interface {
	FetchCandidates(ctx context.Context, q store.CandidateQuery) ([]model.Contractor, error)
	SaveMatchResults(ctx context.Context, results []model.MatchResult) error
}

// Escalator widens the contractor pool through outreach when a shortlist
// comes up thin.
type Escalator interface {
	Escalate(ctx context.Context, bc model.BidCard, knownContractorIDs []string) (model.EscalationSummary, error)
}

// Matcher produces ranked contractor shortlists for bid cards.
type Matcher struct {
	store        Store
	escalator    Escalator
	weights      Weights
	cfg          *config.MatchingConfig
	queryTimeout time.Duration
}

// NewMatcher creates a Matcher. A nil escalator disables escalation;
// queryTimeout bounds each repository call when positive.
func NewMatcher(st Store, esc Escalator, w Weights, cfg *config.MatchingConfig, queryTimeout time.Duration) *Matcher {
	return &Matcher{
		store:        st,
		escalator:    esc,
		weights:      w,
		cfg:          cfg,
		queryTimeout: queryTimeout,
	}
}

// Match ranks candidates for one bid card and persists the shortlist as a
// fresh match run. When the shortlist is thinner than the viable minimum
// and the card has coordinates, it escalates to outreach; escalation
// failures are logged, never surfaced.
func (m *Matcher) Match(ctx context.Context, bc *model.BidCard) ([]model.MatchResult, error) {
	log := zap.L().With(zap.String("bid_card_id", bc.ID))

	q := store.CandidateQuery{Category: bc.Category, Limit: m.cfg.CandidateLimit}
	if bc.Location != nil && m.cfg.SearchRadiusMiles > 0 {
		box := geo.BoundingBox(*bc.Location, m.cfg.SearchRadiusMiles)
		q.BBox = &box
	}

	fetchCtx, cancel := m.boundCtx(ctx)
	candidates, err := m.store.FetchCandidates(fetchCtx, q)
	cancel()
	if err != nil {
		return nil, &MatchingFailedError{
			BidCardID: bc.ID,
			Err:       &RepositoryUnavailableError{Op: "fetch candidates", Err: err},
		}
	}

	results := m.rank(*bc, candidates)

	limit := m.cfg.ShortlistCap
	if limit <= 0 {
		limit = 25
	}
	if len(results) > limit {
		results = results[:limit]
	}

	// One run shares a computed_at; LatestMatches groups on it.
	computedAt := time.Now().UTC()
	for i := range results {
		results[i].ID = uuid.New().String()
		results[i].Rank = i + 1
		results[i].ComputedAt = computedAt
	}

	saveCtx, cancel := m.boundCtx(ctx)
	err = m.store.SaveMatchResults(saveCtx, results)
	cancel()
	if err != nil {
		return nil, &MatchingFailedError{
			BidCardID: bc.ID,
			Err:       &RepositoryUnavailableError{Op: "save match results", Err: err},
		}
	}

	log.Info("match run complete",
		zap.Int("candidates", len(candidates)),
		zap.Int("shortlist", len(results)),
	)

	if len(results) < m.cfg.MinViable && bc.Location != nil && m.escalator != nil {
		known := make([]string, 0, len(candidates))
		for _, c := range candidates {
			known = append(known, c.ID)
		}
		summary, err := m.escalator.Escalate(ctx, *bc, known)
		if err != nil {
			log.Warn("escalation failed", zap.Error(err))
		} else {
			log.Info("escalated thin shortlist",
				zap.Int("shortlist", len(results)),
				zap.Int("discovered", summary.Discovered),
				zap.Int("invitations_queued", summary.InvitationsQueued),
			)
		}
	}

	return results, nil
}

// rank scores every candidate and orders them score desc, distance asc
// with unknown distance last, contractor id asc.
func (m *Matcher) rank(bc model.BidCard, candidates []model.Contractor) []model.MatchResult {
	results := make([]model.MatchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, model.MatchResult{
			BidCardID:     bc.ID,
			ContractorID:  c.ID,
			DistanceMiles: geo.Distance(bc.Location, c.Location),
			Score:         Score(m.weights, bc, c),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		da, db := a.DistanceMiles, b.DistanceMiles
		switch {
		case da != nil && db == nil:
			return true
		case da == nil && db != nil:
			return false
		case da != nil && db != nil && *da != *db:
			return *da < *db
		}
		return a.ContractorID < b.ContractorID
	})

	return results
}

func (m *Matcher) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.queryTimeout)
}
