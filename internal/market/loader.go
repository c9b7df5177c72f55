package market

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/store"
)

// Loader streams parsed market boundaries into a geo-capable store.
type Loader struct {
	geo store.GeoStore
}

// NewLoader creates a Loader backed by the given geo store.
func NewLoader(geo store.GeoStore) *Loader {
	return &Loader{geo: geo}
}

// Load parses each shapefile and upserts its boundaries. Files load in
// order; the first failure stops the run with the rows already loaded
// left in place (reloads are idempotent on slug).
func (l *Loader) Load(ctx context.Context, shpPaths []string, state string) (int64, error) {
	log := zap.L().With(
		zap.String("component", "market.loader"),
		zap.String("state", state),
	)

	var total int64
	for _, path := range shpPaths {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		rows, err := ParseBoundaries(path, state)
		if err != nil {
			return total, err
		}
		if len(rows) == 0 {
			log.Warn("no loadable boundaries", zap.String("path", path))
			continue
		}

		n, err := l.geo.LoadMarkets(ctx, rows)
		if err != nil {
			return total, eris.Wrapf(err, "market: load %s", filepath.Base(path))
		}
		total += n

		log.Info("market boundaries loaded",
			zap.String("file", filepath.Base(path)),
			zap.Int("parsed", len(rows)),
			zap.Int64("loaded", n),
		)
	}

	log.Info("market load complete", zap.Int64("total", total))
	return total, nil
}
