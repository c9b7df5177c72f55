package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
	"github.com/homebid/match-cli/pkg/geocode"
)

// createBidCardRequest is the intake payload for a new bid card. Category
// and coordinates are optional; intake derives what it can.
type createBidCardRequest struct {
	HomeownerID string   `json:"homeowner_id"`
	Category    string   `json:"category"`
	JobType     string   `json:"job_type"`
	Description string   `json:"description"`
	BudgetMin   *float64 `json:"budget_min"`
	BudgetMax   *float64 `json:"budget_max"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	ZipCode     string   `json:"zip_code"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

// handleCreateBidCard accepts a homeowner job request, fills derivable
// fields, persists the card, and kicks off matching in the background.
// matchCtx scopes those background runs to the server lifetime rather
// than the request.
func (e *serverEnv) handleCreateBidCard(matchCtx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createBidCardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.JobType) == "" {
			writeError(w, http.StatusBadRequest, "job_type is required")
			return
		}

		bc, err := e.buildBidCard(r.Context(), req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := e.store.CreateBidCard(r.Context(), bc); err != nil {
			zap.L().Error("create bid card failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "create bid card failed")
			return
		}

		e.assignMarket(r.Context(), bc)

		// Matching runs off the request path; the shortlist lands in
		// match_results for later retrieval.
		go func() {
			results, err := e.matcher.Match(matchCtx, bc)
			if err != nil {
				zap.L().Error("async match failed",
					zap.String("bid_card_id", bc.ID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("async match complete",
				zap.String("bid_card_id", bc.ID),
				zap.Int("matches", len(results)),
			)
		}()

		writeJSON(w, http.StatusAccepted, bc)
	}
}

// buildBidCard assembles the card and fills what intake can derive:
// category from the classifier, coordinates from the geocoder, embedding
// from the embedding service. Derivations are soft; the card is created
// with whatever could be filled.
func (e *serverEnv) buildBidCard(ctx context.Context, req createBidCardRequest) (*model.BidCard, error) {
	bc := &model.BidCard{
		HomeownerID: req.HomeownerID,
		JobType:     strings.TrimSpace(req.JobType),
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Status:      model.BidCardStatusCollecting,
	}
	if req.Lat != nil && req.Lng != nil {
		bc.Location = &model.LatLng{Lat: *req.Lat, Lng: *req.Lng}
	}

	if raw := strings.TrimSpace(req.Category); raw != "" {
		cat, err := model.ParseCategory(strings.ToLower(raw))
		if err != nil {
			return nil, err
		}
		bc.Category = cat
	} else {
		bc.Category = e.classifyCategory(ctx, bc.JobType, bc.Description)
	}

	if bc.Location == nil {
		bc.Location = e.geocodeAddress(ctx, req)
	}

	e.embedCard(ctx, bc)
	return bc, nil
}

func (e *serverEnv) classifyCategory(ctx context.Context, jobType, description string) model.Category {
	if e.classifier == nil {
		return model.CategoryOther
	}
	cat, err := e.classifier.Classify(ctx, jobType, description)
	if err != nil {
		zap.L().Warn("category classification failed, defaulting",
			zap.String("job_type", jobType),
			zap.Error(err),
		)
		return model.CategoryOther
	}
	return cat
}

func (e *serverEnv) geocodeAddress(ctx context.Context, req createBidCardRequest) *model.LatLng {
	if e.geocoder == nil || (req.City == "" && req.ZipCode == "") {
		return nil
	}
	res, err := e.geocoder.Geocode(ctx, geocode.AddressInput{
		City:    req.City,
		State:   req.State,
		ZipCode: req.ZipCode,
	})
	if err != nil {
		zap.L().Warn("geocode failed", zap.String("city", req.City), zap.Error(err))
		return nil
	}
	if res == nil || !res.Matched {
		return nil
	}
	return &model.LatLng{Lat: res.Latitude, Lng: res.Longitude}
}

func (e *serverEnv) embedCard(ctx context.Context, bc *model.BidCard) {
	if e.embedder == nil {
		return
	}
	vec, err := e.embedder.EmbedText(ctx, bc.EmbeddingText())
	if err != nil {
		// The card stays eligible for lexical search with a nil embedding.
		zap.L().Warn("embedding failed",
			zap.String("job_type", bc.JobType),
			zap.Error(err),
		)
		return
	}
	bc.Embedding = vec
	bc.EmbeddingDim = len(vec)
	bc.EmbeddingModel = e.embedder.Model()
}

// assignMarket sets the card's market by point-in-polygon lookup. Only the
// PostGIS backend supports it; elsewhere this is a no-op.
func (e *serverEnv) assignMarket(ctx context.Context, bc *model.BidCard) {
	gs, ok := e.store.(store.GeoStore)
	if !ok || bc.Location == nil {
		return
	}
	marketID, err := gs.AssignMarket(ctx, bc.ID)
	if err != nil {
		zap.L().Warn("market assignment failed",
			zap.String("bid_card_id", bc.ID),
			zap.Error(err),
		)
		return
	}
	bc.MarketID = marketID
}
