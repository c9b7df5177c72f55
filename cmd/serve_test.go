//go:build !integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/match"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/search"
	"github.com/homebid/match-cli/internal/store"
)

// newServeEnv builds a serverEnv over a throwaway sqlite store, with the
// global config pointed at test values the way initServer would leave it.
func newServeEnv(t *testing.T) *serverEnv {
	t.Helper()

	cfg = &config.Config{
		Matching: config.MatchingConfig{
			ShortlistCap:      5,
			MinViable:         2,
			MaxRadiusMiles:    50,
			SearchRadiusMiles: 25,
			CandidateLimit:    200,
			CategoryWeight:    0.4,
			DistanceWeight:    0.3,
			CapacityWeight:    0.2,
			AcceptWeight:      0.1,
		},
		Search:    config.SearchConfig{SimilarityThreshold: 0.3, DefaultLimit: 10, MaxLimit: 50},
		Places:    config.PlacesConfig{Key: "test-places-key"},
		Embedding: config.EmbeddingConfig{Key: "test-embed-key"},
	}

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "serve_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	env := &serverEnv{store: st}
	env.matcher = match.NewMatcher(st, nil, match.FromConfig(cfg.Matching), &cfg.Matching, time.Second)
	env.checker = buildChecker(env)
	return env
}

func TestRoutes_Health(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var report struct {
		Healthy bool `json:"healthy"`
		Checks  []struct {
			Name string `json:"name"`
			OK   bool   `json:"ok"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.True(t, report.Healthy)
	assert.Len(t, report.Checks, 3)
}

func TestRoutes_HealthDegraded(t *testing.T) {
	env := newServeEnv(t)
	cfg.Places.Key = ""
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var report struct {
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.False(t, report.Healthy)
}

func TestRoutes_SearchWithoutEmbedder(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search?q=roof+repair", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "search requires an embedding key")
}

func TestRoutes_SearchShortQuery(t *testing.T) {
	env := newServeEnv(t)
	// Validation rejects the query before the embedder is touched, so a nil
	// embed client is safe here.
	env.searcher = search.NewSearcher(env.store, nil, &cfg.Search, time.Second)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search?q=ab", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "must be at least 3 characters")
}

func TestRoutes_SearchBadLimit(t *testing.T) {
	env := newServeEnv(t)
	env.searcher = search.NewSearcher(env.store, nil, &cfg.Search, time.Second)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/search?q=roof+repair&limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit must be an integer")
}

func TestRoutes_CreateBidCard(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	payload := map[string]any{
		"homeowner_id": "ho-1",
		"category":     "repair",
		"job_type":     "Fix leaking roof",
		"description":  "Water stain spreading across the ceiling",
		"city":         "Denver",
		"state":        "CO",
		"zip_code":     "80202",
		"lat":          39.7392,
		"lng":          -104.9903,
	}
	body, _ := json.Marshal(payload)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bidcards", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)

	var bc model.BidCard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bc))
	assert.NotEmpty(t, bc.ID)
	assert.Equal(t, model.CategoryRepair, bc.Category)
	assert.Equal(t, model.BidCardStatusCollecting, bc.Status)
	require.NotNil(t, bc.Location)
	assert.InDelta(t, 39.7392, bc.Location.Lat, 1e-6)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bidcards/"+bc.ID, nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	// Let the async match run before the store closes.
	time.Sleep(20 * time.Millisecond)
}

func TestRoutes_CreateBidCard_InvalidJSON(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bidcards", bytes.NewReader([]byte("not json")))
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestRoutes_CreateBidCard_MissingJobType(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bidcards", bytes.NewReader([]byte(`{"homeowner_id":"ho-1"}`)))
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "job_type is required")
}

func TestRoutes_CreateBidCard_UnknownCategory(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	body := []byte(`{"job_type":"Fix sink","category":"plumbing"}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bidcards", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid category")
}

func TestRoutes_GetBidCard_NotFound(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bidcards/no-such-card", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "bid card not found")
}

func TestRoutes_MatchPersistsShortlist(t *testing.T) {
	env := newServeEnv(t)
	ctx := context.Background()

	require.NoError(t, env.store.UpsertContractor(ctx, &model.Contractor{
		Name:          "Peak Roofing",
		Categories:    []model.Category{model.CategoryRepair},
		Location:      &model.LatLng{Lat: 39.75, Lng: -104.99},
		Rating:        4.5,
		MaxConcurrent: 5,
		AcceptRate30d: 0.8,
		Enabled:       true,
	}))

	bc := &model.BidCard{
		HomeownerID: "ho-1",
		Category:    model.CategoryRepair,
		JobType:     "Roof repair",
		Location:    &model.LatLng{Lat: 39.7392, Lng: -104.9903},
	}
	require.NoError(t, env.store.CreateBidCard(ctx, bc))

	h := env.routes(ctx, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bidcards/"+bc.ID+"/match", nil))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		BidCardID string              `json:"bid_card_id"`
		Matches   []model.MatchResult `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, bc.ID, resp.BidCardID)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, 1, resp.Matches[0].Rank)

	// The shortlist is persisted, so the read endpoint returns it too.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bidcards/"+bc.ID+"/matches", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Matches, 1)
}

func TestRoutes_Match_NotFound(t *testing.T) {
	env := newServeEnv(t)
	h := env.routes(context.Background(), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/bidcards/no-such-card/match", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRoutes_LatestMatches_EmptyIsNotNull(t *testing.T) {
	env := newServeEnv(t)
	ctx := context.Background()

	bc := &model.BidCard{HomeownerID: "ho-1", Category: model.CategoryOther, JobType: "Odd job"}
	require.NoError(t, env.store.CreateBidCard(ctx, bc))

	h := env.routes(ctx, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bidcards/"+bc.ID+"/matches", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"matches":[]`)
}
