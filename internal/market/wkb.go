// Package market loads service-area boundary polygons from census
// shapefiles into the geo store. Markets are named areas (places or
// counties); bid cards are assigned to them by point-in-polygon
// containment on the PostGIS side.
package market

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// EncodeBoundary converts a shapefile polygon to EWKB bytes with SRID
// 4326. Non-polygon and empty shapes return nil, nil; a market is an
// area, so points and lines have nothing to contribute.
func EncodeBoundary(shape shp.Shape) ([]byte, error) {
	poly, ok := shape.(*shp.Polygon)
	if !ok || poly == nil || poly.NumParts == 0 || len(poly.Points) == 0 {
		return nil, nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)

	for i := int32(0); i < poly.NumParts; i++ {
		start := poly.Parts[i]
		end := int32(len(poly.Points))
		if i+1 < poly.NumParts {
			end = poly.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, poly.Points[j].X, poly.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		p := geom.NewPolygon(geom.XY)
		if err := p.Push(ring); err != nil {
			zap.L().Debug("market: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(p); err != nil {
			zap.L().Debug("market: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil, nil
	}

	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "market: encode boundary")
	}
	return data, nil
}
