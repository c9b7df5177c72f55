package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/classify"
	"github.com/homebid/match-cli/internal/health"
	"github.com/homebid/match-cli/internal/match"
	"github.com/homebid/match-cli/internal/outreach"
	"github.com/homebid/match-cli/internal/search"
	"github.com/homebid/match-cli/internal/store"
	"github.com/homebid/match-cli/pkg/anthropic"
	"github.com/homebid/match-cli/pkg/embed"
	"github.com/homebid/match-cli/pkg/geocode"
)

// serverEnv holds the store, engines, and clients the API server needs.
// Optional collaborators are nil when unconfigured and each endpoint
// degrades accordingly.
type serverEnv struct {
	store      store.Store
	matcher    *match.Matcher
	searcher   *search.Searcher
	classifier *classify.Classifier
	geocoder   geocode.Client
	embedder   embed.Client
	checker    *health.Checker
}

// Close releases resources held by the server environment.
func (e *serverEnv) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

// initServer opens the store and wires every engine the endpoints use.
// Callers should defer env.Close().
func initServer(ctx context.Context) (*serverEnv, error) {
	st, err := openStore(ctx, "serve")
	if err != nil {
		return nil, err
	}

	env := &serverEnv{store: st}

	// Escalation needs the directory API; without a key the matcher just
	// never widens a thin shortlist.
	var esc match.Escalator
	if p := newPlacesClient(); p != nil {
		esc = outreach.NewEscalator(st, p, &cfg.Outreach, &cfg.Places, queryTimeout())
	} else {
		zap.L().Warn("MATCH_PLACES_KEY not set, escalation disabled")
	}
	env.matcher = match.NewMatcher(st, esc, match.FromConfig(cfg.Matching), &cfg.Matching, queryTimeout())

	if ec := newEmbedClient(); ec != nil {
		env.embedder = ec
		env.searcher = search.NewSearcher(st, ec, &cfg.Search, queryTimeout())
	} else {
		zap.L().Warn("MATCH_EMBEDDING_KEY not set, search and new-card embeddings disabled")
	}

	if cfg.Anthropic.Key != "" {
		env.classifier = classify.NewClassifier(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	} else {
		zap.L().Warn("MATCH_ANTHROPIC_KEY not set, category classification disabled")
	}

	env.geocoder = newGeocoder()
	env.checker = buildChecker(env)

	return env, nil
}

// buildChecker registers the health checks /health reports on.
func buildChecker(env *serverEnv) *health.Checker {
	c := health.NewChecker(0)
	c.Register("store", env.store.Ping)
	c.Register("places", func(context.Context) error {
		if cfg.Places.Key == "" {
			return eris.New("places key not configured")
		}
		return nil
	})
	c.Register("embedding", func(context.Context) error {
		if cfg.Embedding.Key == "" {
			return eris.New("embedding key not configured")
		}
		return nil
	})
	return c
}
