// Package search answers free-text bid-card queries with a hybrid of
// lexical and vector retrieval.
package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
	"github.com/homebid/match-cli/pkg/embed"
)

// MinQueryChars is the shortest query worth running.
const MinQueryChars = 3

// Store is the retrieval surface the searcher needs.
type Store interface {
	SearchBidCards(ctx context.Context, q store.SearchQuery) ([]model.ScoredBidCard, error)
}

// Searcher validates queries, embeds them, and delegates retrieval to the
// store, which unions lexical and similarity hits.
type Searcher struct {
	store        Store
	embedder     embed.Client
	cfg          *config.SearchConfig
	queryTimeout time.Duration
}

// NewSearcher creates a Searcher. queryTimeout bounds the store call when
// positive.
func NewSearcher(st Store, embedder embed.Client, cfg *config.SearchConfig, queryTimeout time.Duration) *Searcher {
	return &Searcher{
		store:        st,
		embedder:     embedder,
		cfg:          cfg,
		queryTimeout: queryTimeout,
	}
}

// Search runs one hybrid query. An embedding failure fails the whole
// request; there is no silent lexical-only fallback for queries.
func (s *Searcher) Search(ctx context.Context, q string, limit int) ([]model.ScoredBidCard, error) {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryChars {
		return nil, &ValidationError{Field: "q", Reason: "must be at least 3 characters"}
	}

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
		if limit <= 0 {
			limit = 20
		}
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}

	threshold := s.cfg.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.75
	}

	vec, err := s.embedder.EmbedText(ctx, q)
	if err != nil {
		return nil, err
	}

	qctx, cancel := s.boundCtx(ctx)
	defer cancel()
	results, err := s.store.SearchBidCards(qctx, store.SearchQuery{
		Text:      q,
		Embedding: vec,
		Threshold: threshold,
		Limit:     limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "search: query bid cards")
	}

	zap.L().Debug("search complete",
		zap.String("q", q),
		zap.Int("limit", limit),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (s *Searcher) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
