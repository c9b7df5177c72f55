package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Category classifies the kind of work a bid card asks for.
type Category string

const (
	CategoryRepair       Category = "repair"
	CategoryRenovation   Category = "renovation"
	CategoryInstallation Category = "installation"
	CategoryMaintenance  Category = "maintenance"
	CategoryConstruction Category = "construction"
	CategoryOther        Category = "other"
)

// Categories lists every valid category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryRepair,
		CategoryRenovation,
		CategoryInstallation,
		CategoryMaintenance,
		CategoryConstruction,
		CategoryOther,
	}
}

// Valid reports whether c is one of the enumerated categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryRepair, CategoryRenovation, CategoryInstallation,
		CategoryMaintenance, CategoryConstruction, CategoryOther:
		return true
	}
	return false
}

// ParseCategory converts a raw string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", eris.Errorf("model: invalid category %q", s)
	}
	return c, nil
}

// BidCardStatus represents the bidding lifecycle of a bid card.
type BidCardStatus string

const (
	BidCardStatusCollecting BidCardStatus = "collecting_bids"
	BidCardStatusClosed     BidCardStatus = "closed"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BidCard is a homeowner's structured job request. The embedding is computed
// once at creation from category + job type and is nil when the embedding
// service was unavailable (the card stays eligible for lexical search).
type BidCard struct {
	ID             string         `json:"id"`
	HomeownerID    string         `json:"homeowner_id,omitempty"`
	Category       Category       `json:"category"`
	JobType        string         `json:"job_type"`
	Description    string         `json:"description,omitempty"`
	BudgetMin      *float64       `json:"budget_min,omitempty"`
	BudgetMax      *float64       `json:"budget_max,omitempty"`
	City           string         `json:"city,omitempty"`
	State          string         `json:"state,omitempty"`
	ZipCode        string         `json:"zip_code,omitempty"`
	Location       *LatLng        `json:"location,omitempty"`
	MarketID       *string        `json:"market_id,omitempty"`
	Status         BidCardStatus  `json:"status"`
	Embedding      []float32      `json:"-"`
	EmbeddingDim   int            `json:"-"`
	EmbeddingModel string         `json:"-"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EmbeddingText is the text the card's embedding is derived from.
func (b BidCard) EmbeddingText() string {
	if b.JobType == "" {
		return string(b.Category)
	}
	return string(b.Category) + " " + b.JobType
}

// ScoredBidCard is a bid card paired with a hybrid-search similarity score.
type ScoredBidCard struct {
	BidCard
	Score float64 `json:"score"`
}
