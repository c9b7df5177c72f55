package market

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
)

// ParseBoundaries reads a census place or county shapefile and returns
// market rows ready for loading. The state code is not carried in place
// shapefiles, so the caller supplies it. Records without a NAME
// attribute or a usable polygon are skipped.
func ParseBoundaries(shpPath, state string) ([]store.MarketBoundary, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "market: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	nameIdx, hasName := fieldIdx["name"]
	if !hasName {
		return nil, eris.Errorf("market: shapefile %s has no NAME attribute", shpPath)
	}

	state = strings.ToUpper(strings.TrimSpace(state))

	var rows []store.MarketBoundary
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		name := strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		if name == "" {
			skipped++
			continue
		}

		boundary, encErr := EncodeBoundary(shape)
		if encErr != nil || boundary == nil {
			skipped++
			continue
		}

		rows = append(rows, store.MarketBoundary{
			Market: model.Market{
				Name:  name,
				State: state,
				Slug:  Slug(name, state),
			},
			Boundary: boundary,
		})
	}

	if skipped > 0 {
		zap.L().Debug("market: skipped shapefile records",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	return rows, nil
}

// Slug builds the stable identifier reloads upsert on, e.g. "denver-co".
func Slug(name, state string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}
	s := strings.TrimRight(b.String(), "-")
	return s + "-" + strings.ToLower(state)
}
