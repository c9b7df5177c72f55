package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContractorServesCategory(t *testing.T) {
	t.Parallel()

	c := Contractor{Categories: []Category{CategoryRepair, CategoryMaintenance}}

	assert.True(t, c.ServesCategory(CategoryRepair))
	assert.True(t, c.ServesCategory(CategoryMaintenance))
	assert.False(t, c.ServesCategory(CategoryConstruction))
	assert.False(t, Contractor{}.ServesCategory(CategoryRepair))
}

func TestLicenseActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(1, 0, 0)
	past := now.AddDate(-1, 0, 0)

	tests := []struct {
		name string
		lic  License
		want bool
	}{
		{"active no expiry", License{Status: "active"}, true},
		{"active future expiry", License{Status: "active", ExpiresAt: &future}, true},
		{"active expired", License{Status: "active", ExpiresAt: &past}, false},
		{"inactive", License{Status: "revoked", ExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.lic.Active(now))
		})
	}
}

func TestProspectActionable(t *testing.T) {
	t.Parallel()

	placeID := "place-1"
	phone := "+15125550100"
	email := "ops@example.com"

	tests := []struct {
		name string
		p    Prospect
		want bool
	}{
		{"place id only", Prospect{PlaceID: &placeID}, true},
		{"phone only", Prospect{Phone: &phone}, true},
		{"email only", Prospect{Email: &email}, true},
		{"no identifiers", Prospect{Name: "Acme Roofing"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.p.Actionable())
		})
	}
}
