package model

import (
	"encoding/json"
	"time"
)

// Prospect is a contractor-like business discovered from an external
// directory, not yet a platform user. Rows are never deleted; rediscovery
// refreshes the raw payload and fills missing contact fields.
type Prospect struct {
	ID            string          `json:"id"`
	PlaceID       *string         `json:"place_id,omitempty"`
	Name          string          `json:"name"`
	Phone         *string         `json:"phone,omitempty"`
	Email         *string         `json:"email,omitempty"`
	Website       *string         `json:"website,omitempty"`
	Categories    []Category      `json:"categories,omitempty"`
	Location      *LatLng         `json:"location,omitempty"`
	Source        string          `json:"source"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	LicenseNumber *string         `json:"license_number,omitempty"`
	CRMSyncedAt   *time.Time      `json:"crm_synced_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Actionable reports whether the prospect carries at least one of the
// identifiers outreach can act on (place id, phone, or email).
func (p Prospect) Actionable() bool {
	return p.PlaceID != nil || p.Phone != nil || p.Email != nil
}
