package licensing

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
)

// upsertBatchSize bounds how many roster rows go to the store per write.
const upsertBatchSize = 1000

// Store is the slice of the persistence layer the engine needs.
type Store interface {
	UpsertLicenses(ctx context.Context, rows []model.License) (int64, error)
	CrossReferenceLicenses(ctx context.Context, state string) (int64, error)
	RecordLicenseSync(ctx context.Context, run *model.LicenseSyncRun) error
	LastLicenseSync(ctx context.Context, state string) (*model.LicenseSyncRun, error)
}

// Engine orchestrates license roster sync runs.
type Engine struct {
	store   Store
	reg     *Registry
	tempDir string
}

// RunOpts configures which states to sync and how.
type RunOpts struct {
	States []string // restrict to specific state codes
	Force  bool     // ignore ETag-based skipping
}

// RunStats summarizes one engine run.
type RunStats struct {
	Synced          int   `json:"synced"`
	Skipped         int   `json:"skipped"`
	Failed          int   `json:"failed"`
	RowsUpserted    int64 `json:"rows_upserted"`
	ProspectsLinked int64 `json:"prospects_linked"`
}

// NewEngine creates a sync engine. An empty tempDir uses the system
// temp directory.
func NewEngine(store Store, reg *Registry, tempDir string) *Engine {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Engine{store: store, reg: reg, tempDir: tempDir}
}

// Run iterates over the selected sources, skips boards whose roster is
// unchanged since the last recorded sync, streams the rest into the
// store, and cross-references fresh rows against prospects. One board
// failing never stops the others; every attempt lands in the sync log.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*RunStats, error) {
	log := zap.L().With(zap.String("component", "licensing.engine"))

	sources, err := e.reg.Select(opts.States)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		log.Info("no sources selected")
		return &RunStats{}, nil
	}

	stats := &RunStats{}
	for _, src := range sources {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		state := src.State()
		srcLog := log.With(zap.String("state", state))

		etag, etagErr := src.ETag(ctx)
		if etagErr != nil {
			srcLog.Debug("etag check failed", zap.Error(etagErr))
			etag = ""
		}

		if !opts.Force && etag != "" {
			last, lastErr := e.store.LastLicenseSync(ctx, state)
			if lastErr != nil {
				return stats, eris.Wrapf(lastErr, "licensing: check last sync for %s", state)
			}
			if last != nil && last.Error == "" && last.ETag == etag {
				srcLog.Info("roster unchanged, skipping", zap.String("etag", etag))
				e.record(ctx, srcLog, &model.LicenseSyncRun{
					State:      state,
					SourceURL:  src.URL(),
					ETag:       etag,
					Skipped:    true,
					StartedAt:  time.Now().UTC(),
					FinishedAt: time.Now().UTC(),
				})
				stats.Skipped++
				continue
			}
		}

		srcLog.Info("starting roster sync")
		started := time.Now().UTC()
		seen, upserted, syncErr := e.syncSource(ctx, src)
		run := &model.LicenseSyncRun{
			State:      state,
			SourceURL:  src.URL(),
			ETag:       etag,
			RowsSeen:   seen,
			RowsUpsert: upserted,
			StartedAt:  started,
			FinishedAt: time.Now().UTC(),
		}

		if syncErr != nil {
			run.Error = syncErr.Error()
			e.record(ctx, srcLog, run)
			srcLog.Error("roster sync failed", zap.Error(syncErr),
				zap.Duration("elapsed", run.FinishedAt.Sub(started)))
			stats.Failed++
			continue
		}

		e.record(ctx, srcLog, run)
		stats.Synced++
		stats.RowsUpserted += int64(upserted)
		srcLog.Info("roster sync complete",
			zap.Int("rows_seen", seen),
			zap.Int("rows_upserted", upserted),
			zap.Duration("elapsed", run.FinishedAt.Sub(started)),
		)

		linked, xrefErr := e.store.CrossReferenceLicenses(ctx, state)
		if xrefErr != nil {
			srcLog.Warn("cross-reference failed", zap.Error(xrefErr))
			continue
		}
		stats.ProspectsLinked += linked
		srcLog.Info("cross-reference complete", zap.Int64("prospects_linked", linked))
	}

	log.Info("licensing run complete",
		zap.Int("synced", stats.Synced),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int64("rows_upserted", stats.RowsUpserted),
		zap.Int64("prospects_linked", stats.ProspectsLinked),
	)
	return stats, nil
}

// syncSource drains one source's roster into the store in batches.
func (e *Engine) syncSource(ctx context.Context, src Source) (seen int, upserted int, err error) {
	syncedAt := time.Now().UTC()
	rows, errs := src.Roster(ctx, e.tempDir)

	batch := make([]model.License, 0, upsertBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, upErr := e.store.UpsertLicenses(ctx, batch)
		if upErr != nil {
			return eris.Wrapf(upErr, "licensing: upsert %s batch", src.State())
		}
		upserted += int(n)
		batch = batch[:0]
		return nil
	}

	var flushErr error
	for lic := range rows {
		if flushErr != nil {
			continue // drain so the source goroutine can finish
		}
		lic.SyncedAt = syncedAt
		seen++
		batch = append(batch, lic)
		if len(batch) >= upsertBatchSize {
			flushErr = flush()
		}
	}
	rosterErr := <-errs
	if flushErr != nil {
		return seen, upserted, flushErr
	}
	if rosterErr != nil {
		return seen, upserted, rosterErr
	}
	return seen, upserted, flush()
}

// record writes a sync-log row; failures are logged, never fatal.
func (e *Engine) record(ctx context.Context, log *zap.Logger, run *model.LicenseSyncRun) {
	if err := e.store.RecordLicenseSync(ctx, run); err != nil {
		log.Error("record sync run failed", zap.Error(err))
	}
}
