// Package geo provides great-circle distance and bounding-box math for
// candidate filtering and proximity scoring.
package geo

import (
	"math"

	"github.com/homebid/match-cli/internal/model"
)

// EarthRadiusMiles is the mean Earth radius used for haversine distances.
const EarthRadiusMiles = 3958.8

// MilesPerDegreeLat is the approximate north-south span of one degree of
// latitude. At mid-latitudes, 1 degree is about 69 miles.
const MilesPerDegreeLat = 69.0

// HaversineMiles returns the great-circle distance in miles between two
// WGS84 coordinate pairs.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

// Distance returns the distance in miles between two optional points, or
// nil when either endpoint is unknown.
func Distance(a, b *model.LatLng) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := HaversineMiles(a.Lat, a.Lng, b.Lat, b.Lng)
	return &d
}

// BBox is a lat/lng envelope for coarse SQL pre-filtering.
type BBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BoundingBox returns the envelope covering a circle of radiusMiles around
// center. The longitude span widens with latitude (divided by cos(lat));
// near the poles it degenerates to the full longitude range.
func BoundingBox(center model.LatLng, radiusMiles float64) BBox {
	dLat := radiusMiles / MilesPerDegreeLat

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	var dLng float64
	if cosLat < 1e-6 {
		dLng = 180
	} else {
		dLng = radiusMiles / (MilesPerDegreeLat * cosLat)
	}

	b := BBox{
		MinLat: center.Lat - dLat,
		MaxLat: center.Lat + dLat,
		MinLng: center.Lng - dLng,
		MaxLng: center.Lng + dLng,
	}
	if b.MinLat < -90 {
		b.MinLat = -90
	}
	if b.MaxLat > 90 {
		b.MaxLat = 90
	}
	if b.MinLng < -180 {
		b.MinLng = -180
	}
	if b.MaxLng > 180 {
		b.MaxLng = 180
	}
	return b
}
