package model

import "time"

// Market is a service-area polygon used to group bid cards and
// contractors for reporting. Boundary geometry lives in the database
// as EWKB and is not carried on the struct.
type Market struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
