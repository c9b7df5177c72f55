package market

import (
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func TestEncodeBoundary_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -105.1, Y: 39.6},
			{X: -105.1, Y: 39.9},
			{X: -104.7, Y: 39.9},
			{X: -104.7, Y: 39.6},
			{X: -105.1, Y: 39.6},
		},
	}

	data, err := EncodeBoundary(poly)
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	mp, ok := g.(*geom.MultiPolygon)
	require.True(t, ok, "boundaries always encode as multipolygons")
	assert.Equal(t, 4326, mp.SRID())
	assert.Equal(t, 1, mp.NumPolygons())

	ring := mp.Polygon(0).LinearRing(0)
	assert.Equal(t, geom.Coord{-105.1, 39.6}, ring.Coord(0))
}

func TestEncodeBoundary_MultiPart(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: -105.0, Y: 39.0},
			{X: -105.0, Y: 40.0},
			{X: -104.0, Y: 40.0},
			{X: -104.0, Y: 39.0},
			{X: -105.0, Y: 39.0},

			{X: -103.0, Y: 38.0},
			{X: -103.0, Y: 38.5},
			{X: -102.5, Y: 38.5},
			{X: -102.5, Y: 38.0},
			{X: -103.0, Y: 38.0},
		},
	}

	data, err := EncodeBoundary(poly)
	require.NoError(t, err)
	require.NotNil(t, data)

	g, err := ewkb.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, 2, g.(*geom.MultiPolygon).NumPolygons())
}

func TestEncodeBoundary_NonPolygonShapes(t *testing.T) {
	data, err := EncodeBoundary(&shp.Point{X: -104.99, Y: 39.74})
	require.NoError(t, err)
	assert.Nil(t, data, "points are not areas")

	data, err = EncodeBoundary(&shp.PolyLine{
		NumParts: 1,
		Parts:    []int32{0},
		Points:   []shp.Point{{X: -105.0, Y: 39.0}, {X: -104.0, Y: 39.5}},
	})
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = EncodeBoundary(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = EncodeBoundary(&shp.Polygon{})
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSlug(t *testing.T) {
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{"Denver", "CO", "denver-co"},
		{"Coeur d'Alene", "ID", "coeur-d-alene-id"},
		{"St. Louis", "MO", "st-louis-mo"},
		{"Winston-Salem", "NC", "winston-salem-nc"},
		{"O'Fallon", "mo", "o-fallon-mo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.name, tt.state))
		})
	}
}
