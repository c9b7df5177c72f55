package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizePhone(""))
	assert.Equal(t, "", NormalizePhone("   "))
	assert.Equal(t, "", NormalizePhone("call us"))
}

func TestNormalizePhone_USNational(t *testing.T) {
	assert.Equal(t, "+13035550101", NormalizePhone("(303) 555-0101"))
	assert.Equal(t, "+13035550101", NormalizePhone("303-555-0101"))
	assert.Equal(t, "+13035550101", NormalizePhone("303.555.0101"))
	assert.Equal(t, "+13035550101", NormalizePhone(" 303 555 0101 "))
}

func TestNormalizePhone_CountryCodePresent(t *testing.T) {
	assert.Equal(t, "+13035550101", NormalizePhone("1-303-555-0101"))
	assert.Equal(t, "+13035550101", NormalizePhone("+1 (303) 555-0101"))
	assert.Equal(t, "+442079460958", NormalizePhone("+44 20 7946 0958"))
}

func TestNormalizePhone_SameBusinessDedupes(t *testing.T) {
	a := NormalizePhone("(303) 555-0101")
	b := NormalizePhone("+1 303.555.0101")
	assert.Equal(t, a, b)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "info@example.com", NormalizeEmail("  Info@Example.COM "))
	assert.Equal(t, "", NormalizeEmail(""))
	assert.Equal(t, "", NormalizeEmail("   "))
}
