package model

import "time"

// MatchResult is one ranked bid-card/contractor pairing from a matching run.
// Rows are append-only: every run writes a fresh result set and readers
// dedupe by the latest computed_at.
type MatchResult struct {
	ID            string    `json:"id"`
	BidCardID     string    `json:"bid_card_id"`
	ContractorID  string    `json:"contractor_id"`
	DistanceMiles *float64  `json:"distance_miles,omitempty"`
	Score         float64   `json:"score"`
	Rank          int       `json:"rank"`
	ComputedAt    time.Time `json:"computed_at"`
}
