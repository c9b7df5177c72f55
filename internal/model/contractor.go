package model

import "time"

// Contractor is a registered contractor profile snapshot used for matching.
// The profile is owned by the contractor; the matching engine reads it and
// clamps out-of-range workload values rather than rejecting them.
type Contractor struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Categories    []Category `json:"categories"`
	Location      *LatLng    `json:"location,omitempty"`
	Rating        float64    `json:"rating"` // 0..5 directory scale, 0 when unrated
	ActiveJobs    int        `json:"active_jobs"`
	MaxConcurrent int        `json:"max_concurrent"`
	AcceptRate30d float64    `json:"accept_rate_30d"` // 0..1
	Enabled       bool       `json:"enabled"`
	Phone         string     `json:"phone,omitempty"`
	Email         string     `json:"email,omitempty"`
	LicenseNumber *string    `json:"license_number,omitempty"`
	MarketID      *string    `json:"market_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ServesCategory reports whether the contractor lists the given category.
func (c Contractor) ServesCategory(cat Category) bool {
	for _, sc := range c.Categories {
		if sc == cat {
			return true
		}
	}
	return false
}
