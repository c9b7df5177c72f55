package model

import "time"

// License is one row from a state contractor license registry. The
// (State, LicenseNumber) pair is the natural key across syncs.
type License struct {
	ID             string     `json:"id"`
	State          string     `json:"state"`
	LicenseNumber  string     `json:"license_number"`
	BusinessName   string     `json:"business_name"`
	Classification string     `json:"classification,omitempty"`
	Status         string     `json:"status"`
	City           string     `json:"city,omitempty"`
	Zip            string     `json:"zip,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	SyncedAt       time.Time  `json:"synced_at"`
}

// Active reports whether the license is usable for cross-referencing:
// status is active and not past expiry as of now.
func (l License) Active(now time.Time) bool {
	if l.Status != "active" {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// LicenseSyncRun records one registry sync attempt for auditing and
// ETag-based skip decisions on the next run.
type LicenseSyncRun struct {
	ID         string    `json:"id"`
	State      string    `json:"state"`
	SourceURL  string    `json:"source_url"`
	ETag       string    `json:"etag,omitempty"`
	RowsSeen   int       `json:"rows_seen"`
	RowsUpsert int       `json:"rows_upserted"`
	Skipped    bool      `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
