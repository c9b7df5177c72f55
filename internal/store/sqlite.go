package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/homebid/match-cli/internal/db"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite. Embeddings are
// little-endian float32 blobs and similarity is computed in Go; market
// assignment is not supported.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS bid_cards (
	id              TEXT PRIMARY KEY,
	homeowner_id    TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL,
	job_type        TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	budget_min      REAL,
	budget_max      REAL,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	zip_code        TEXT NOT NULL DEFAULT '',
	lat             REAL,
	lng             REAL,
	market_id       TEXT,
	status          TEXT NOT NULL DEFAULT 'collecting_bids',
	embedding       BLOB,
	embedding_dim   INTEGER NOT NULL DEFAULT 0,
	embedding_model TEXT NOT NULL DEFAULT '',
	metadata        TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bid_cards_category ON bid_cards(category);
CREATE INDEX IF NOT EXISTS idx_bid_cards_status ON bid_cards(status);

CREATE TABLE IF NOT EXISTS contractors (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	categories      TEXT NOT NULL DEFAULT '[]',
	lat             REAL,
	lng             REAL,
	rating          REAL NOT NULL DEFAULT 0,
	active_jobs     INTEGER NOT NULL DEFAULT 0,
	max_concurrent  INTEGER NOT NULL DEFAULT 1,
	accept_rate_30d REAL NOT NULL DEFAULT 0,
	enabled         BOOLEAN NOT NULL DEFAULT 1,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	license_number  TEXT,
	market_id       TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contractors_enabled ON contractors(enabled, lat, lng);

CREATE TABLE IF NOT EXISTS match_results (
	id             TEXT PRIMARY KEY,
	bid_card_id    TEXT NOT NULL,
	contractor_id  TEXT NOT NULL,
	distance_miles REAL,
	score          REAL NOT NULL,
	rank           INTEGER NOT NULL,
	computed_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_results_bid_card ON match_results(bid_card_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS prospects (
	id             TEXT PRIMARY KEY,
	place_id       TEXT,
	name           TEXT NOT NULL,
	phone          TEXT,
	email          TEXT,
	website        TEXT,
	categories     TEXT NOT NULL DEFAULT '[]',
	lat            REAL,
	lng            REAL,
	source         TEXT NOT NULL DEFAULT '',
	raw            TEXT,
	license_number TEXT,
	crm_synced_at  DATETIME,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_place_id ON prospects(place_id) WHERE place_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_phone ON prospects(lower(phone)) WHERE phone IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_email ON prospects(lower(email)) WHERE email IS NOT NULL;

CREATE TABLE IF NOT EXISTS invitations (
	id              TEXT PRIMARY KEY,
	bid_card_id     TEXT NOT NULL,
	contractor_id   TEXT,
	prospect_id     TEXT,
	channel         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_attempt_at DATETIME,
	reason          TEXT NOT NULL DEFAULT '',
	response        TEXT,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	CHECK ((contractor_id IS NULL) <> (prospect_id IS NULL))
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_invitations_prospect ON invitations(bid_card_id, prospect_id) WHERE prospect_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_invitations_contractor ON invitations(bid_card_id, contractor_id) WHERE contractor_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_invitations_status ON invitations(status, created_at);

CREATE TABLE IF NOT EXISTS licenses (
	id             TEXT PRIMARY KEY,
	state          TEXT NOT NULL,
	license_number TEXT NOT NULL,
	business_name  TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	zip            TEXT NOT NULL DEFAULT '',
	phone          TEXT,
	issued_at      DATETIME,
	expires_at     DATETIME,
	synced_at      DATETIME NOT NULL,
	UNIQUE (state, license_number)
);

CREATE INDEX IF NOT EXISTS idx_licenses_phone ON licenses(phone) WHERE phone IS NOT NULL;

CREATE TABLE IF NOT EXISTS license_sync_log (
	id            TEXT PRIMARY KEY,
	state         TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	etag          TEXT NOT NULL DEFAULT '',
	rows_seen     INTEGER NOT NULL DEFAULT 0,
	rows_upserted INTEGER NOT NULL DEFAULT 0,
	skipped       BOOLEAN NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_license_sync_state ON license_sync_log(state, started_at DESC);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	invitation_id  TEXT NOT NULL,
	bid_card_id    TEXT NOT NULL,
	channel        TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Bid cards

func (s *SQLiteStore) CreateBidCard(ctx context.Context, bc *model.BidCard) error {
	if bc.ID == "" {
		bc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	bc.CreatedAt = now
	bc.UpdatedAt = now
	if bc.Status == "" {
		bc.Status = model.BidCardStatusCollecting
	}

	var metadataJSON any
	if bc.Metadata != nil {
		data, err := json.Marshal(bc.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal bid card metadata")
		}
		metadataJSON = string(data)
	}

	var lat, lng *float64
	if bc.Location != nil {
		lat, lng = &bc.Location.Lat, &bc.Location.Lng
	}
	if len(bc.Embedding) > 0 {
		bc.EmbeddingDim = len(bc.Embedding)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bid_cards
		 (id, homeowner_id, category, job_type, description, budget_min, budget_max, city, state, zip_code,
		  lat, lng, market_id, status, embedding, embedding_dim, embedding_model, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bc.ID, bc.HomeownerID, string(bc.Category), bc.JobType, bc.Description,
		bc.BudgetMin, bc.BudgetMax, bc.City, bc.State, bc.ZipCode,
		lat, lng, bc.MarketID, string(bc.Status),
		db.EncodeVector(bc.Embedding), bc.EmbeddingDim, bc.EmbeddingModel, metadataJSON, now, now,
	)
	return eris.Wrap(err, "sqlite: insert bid card")
}

func (s *SQLiteStore) GetBidCard(ctx context.Context, id string) (*model.BidCard, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bidCardColumns+` FROM bid_cards WHERE id = ?`, id)
	bc, err := scanBidCard(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get bid card %s", id)
	}
	return bc, nil
}

func (s *SQLiteStore) UpdateBidCardEmbedding(ctx context.Context, id string, embedding []float32, embeddingModel string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bid_cards SET embedding = ?, embedding_dim = ?, embedding_model = ?, updated_at = ? WHERE id = ?`,
		db.EncodeVector(embedding), len(embedding), embeddingModel, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update bid card embedding %s", id)
	}
	return checkRowsAffected(res, "bid card", id)
}

func (s *SQLiteStore) ListBidCardsForBackfill(ctx context.Context, embeddingModel string, limit int) ([]model.BidCard, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bidCardColumns+` FROM bid_cards
		 WHERE embedding IS NULL OR embedding_model <> ?
		 ORDER BY created_at ASC LIMIT ?`,
		embeddingModel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list bid cards for backfill")
	}
	defer rows.Close()

	var cards []model.BidCard
	for rows.Next() {
		bc, err := scanBidCard(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan bid card")
		}
		cards = append(cards, *bc)
	}
	return cards, eris.Wrap(rows.Err(), "sqlite: list bid cards iterate")
}

// SearchBidCards scans once, applying the lexical predicate in Go and the
// similarity arm over the blob-encoded embeddings. A lexical hit with a
// comparable embedding keeps its computed similarity even below the
// threshold; one without scores 0.
func (s *SQLiteStore) SearchBidCards(ctx context.Context, q SearchQuery) ([]model.ScoredBidCard, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+bidCardColumns+`, embedding FROM bid_cards`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search bid cards")
	}
	defer rows.Close()

	var results []model.ScoredBidCard
	for rows.Next() {
		bc, blob, err := scanBidCardWithEmbedding(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search result")
		}

		lexical := SubstringMatch(bc.JobType, q.Text) || SubstringMatch(string(bc.Category), q.Text)

		var sim float64
		var hasSim bool
		if len(q.Embedding) > 0 && len(blob) > 0 {
			vec, err := db.DecodeVector(blob)
			if err != nil {
				return nil, eris.Wrapf(err, "sqlite: decode embedding %s", bc.ID)
			}
			if len(vec) == len(q.Embedding) {
				sim = db.Cosine(q.Embedding, vec)
				hasSim = true
			}
		}

		switch {
		case lexical && hasSim:
			results = append(results, model.ScoredBidCard{BidCard: *bc, Score: sim})
		case lexical:
			results = append(results, model.ScoredBidCard{BidCard: *bc})
		case hasSim && sim >= q.Threshold:
			results = append(results, model.ScoredBidCard{BidCard: *bc, Score: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: search bid cards iterate")
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Contractors

func (s *SQLiteStore) UpsertContractor(ctx context.Context, c *model.Contractor) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	categoriesJSON, err := json.Marshal(c.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contractor categories")
	}

	var lat, lng *float64
	if c.Location != nil {
		lat, lng = &c.Location.Lat, &c.Location.Lng
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contractors
		 (id, name, categories, lat, lng, rating, active_jobs, max_concurrent, accept_rate_30d, enabled,
		  phone, email, license_number, market_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   name = excluded.name, categories = excluded.categories, lat = excluded.lat, lng = excluded.lng,
		   rating = excluded.rating, active_jobs = excluded.active_jobs, max_concurrent = excluded.max_concurrent,
		   accept_rate_30d = excluded.accept_rate_30d, enabled = excluded.enabled, phone = excluded.phone,
		   email = excluded.email, license_number = excluded.license_number, market_id = excluded.market_id,
		   updated_at = excluded.updated_at`,
		c.ID, c.Name, string(categoriesJSON), lat, lng, c.Rating, c.ActiveJobs, c.MaxConcurrent,
		c.AcceptRate30d, c.Enabled, c.Phone, c.Email, c.LicenseNumber, c.MarketID,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert contractor")
}

func (s *SQLiteStore) GetContractor(ctx context.Context, id string) (*model.Contractor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE id = ?`, id)
	c, err := scanContractor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contractor %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) FetchCandidates(ctx context.Context, q CandidateQuery) ([]model.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE enabled = 1`
	args := []any{}

	if q.BBox != nil {
		query += ` AND (lat IS NULL OR (lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?))`
		args = append(args, q.BBox.MinLat, q.BBox.MaxLat, q.BBox.MinLng, q.BBox.MaxLng)
	}
	if q.Category != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(contractors.categories) WHERE json_each.value = ?)`
		args = append(args, string(q.Category))
	}

	query += ` ORDER BY id ASC`

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch candidates")
	}
	defer rows.Close()

	var candidates []model.Contractor
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		candidates = append(candidates, *c)
	}
	return candidates, eris.Wrap(rows.Err(), "sqlite: fetch candidates iterate")
}

// Match results

func (s *SQLiteStore) SaveMatchResults(ctx context.Context, results []model.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	batchNow := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save match results")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO match_results (id, bid_card_id, contractor_id, distance_miles, score, rank, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare save match results")
	}
	defer stmt.Close()

	for _, r := range results {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.ComputedAt.IsZero() {
			r.ComputedAt = batchNow
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.BidCardID, r.ContractorID,
			r.DistanceMiles, r.Score, r.Rank, r.ComputedAt); err != nil {
			return eris.Wrap(err, "sqlite: insert match result")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit save match results")
}

func (s *SQLiteStore) LatestMatches(ctx context.Context, bidCardID string) ([]model.MatchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bid_card_id, contractor_id, distance_miles, score, rank, computed_at
		 FROM match_results
		 WHERE bid_card_id = ?
		   AND computed_at = (SELECT max(computed_at) FROM match_results WHERE bid_card_id = ?)
		 ORDER BY rank ASC`,
		bidCardID, bidCardID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest matches %s", bidCardID)
	}
	defer rows.Close()

	var results []model.MatchResult
	for rows.Next() {
		var r model.MatchResult
		if err := rows.Scan(&r.ID, &r.BidCardID, &r.ContractorID, &r.DistanceMiles, &r.Score, &r.Rank, &r.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan match result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: latest matches iterate")
}

// Prospects

func (s *SQLiteStore) FindProspect(ctx context.Context, placeID, phone, email string) (*model.Prospect, error) {
	type lookup struct {
		clause string
		key    string
	}
	var lookups []lookup
	if placeID != "" {
		lookups = append(lookups, lookup{`place_id = ?`, placeID})
	}
	if phone != "" {
		lookups = append(lookups, lookup{`lower(phone) = lower(?)`, phone})
	}
	if email != "" {
		lookups = append(lookups, lookup{`lower(email) = lower(?)`, email})
	}

	for _, lk := range lookups {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+prospectColumns+` FROM prospects WHERE `+lk.clause+` LIMIT 1`, lk.key)
		p, err := scanProspect(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: find prospect")
		}
		return p, nil
	}
	return nil, nil
}

func (s *SQLiteStore) CreateProspect(ctx context.Context, p *model.Prospect) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	categoriesJSON, err := json.Marshal(p.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal prospect categories")
	}

	var lat, lng *float64
	if p.Location != nil {
		lat, lng = &p.Location.Lat, &p.Location.Lng
	}
	var raw any
	if len(p.Raw) > 0 {
		raw = string(p.Raw)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prospects
		 (id, place_id, name, phone, email, website, categories, lat, lng, source, raw, license_number, crm_synced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PlaceID, p.Name, p.Phone, p.Email, p.Website, string(categoriesJSON),
		lat, lng, p.Source, raw, p.LicenseNumber, p.CRMSyncedAt, now, now,
	)
	return eris.Wrap(err, "sqlite: insert prospect")
}

func (s *SQLiteStore) RefreshProspect(ctx context.Context, p *model.Prospect) error {
	var raw any
	if len(p.Raw) > 0 {
		raw = string(p.Raw)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET
		   raw = ?,
		   phone = COALESCE(phone, ?),
		   email = COALESCE(email, ?),
		   website = COALESCE(website, ?),
		   updated_at = ?
		 WHERE id = ?`,
		raw, p.Phone, p.Email, p.Website, time.Now().UTC(), p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: refresh prospect %s", p.ID)
	}
	return checkRowsAffected(res, "prospect", p.ID)
}

func (s *SQLiteStore) ListUnsyncedProspects(ctx context.Context, limit int) ([]model.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects
		 WHERE crm_synced_at IS NULL
		 ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unsynced prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: list unsynced prospects iterate")
}

func (s *SQLiteStore) MarkProspectsSynced(ctx context.Context, ids []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{syncedAt.UTC(), syncedAt.UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET crm_synced_at = ?, updated_at = ? WHERE id IN (`+placeholders+`)`,
		args...,
	)
	return eris.Wrap(err, "sqlite: mark prospects synced")
}

// Invitations

func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *model.Invitation) (bool, error) {
	if err := inv.Validate(); err != nil {
		return false, err
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Status == "" {
		inv.Status = model.InviteQueued
	}

	conflict := `(bid_card_id, contractor_id) WHERE contractor_id IS NOT NULL`
	if inv.ProspectID != nil {
		conflict = `(bid_card_id, prospect_id) WHERE prospect_id IS NOT NULL`
	}
	var response any
	if len(inv.Response) > 0 {
		response = string(inv.Response)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO invitations
		 (id, bid_card_id, contractor_id, prospect_id, channel, status, attempts, last_attempt_at, reason, response, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT `+conflict+` DO NOTHING`,
		inv.ID, inv.BidCardID, inv.ContractorID, inv.ProspectID, string(inv.Channel),
		string(inv.Status), inv.Attempts, inv.LastAttemptAt, inv.Reason, response,
		now, now,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert invitation")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert invitation rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) ListQueuedInvitations(ctx context.Context, limit int) ([]model.Invitation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE status = 'queued' ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list queued invitations")
	}
	defer rows.Close()

	var invs []model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invitation")
		}
		invs = append(invs, *inv)
	}
	return invs, eris.Wrap(rows.Err(), "sqlite: list queued invitations iterate")
}

func (s *SQLiteStore) UpdateInvitationDelivery(ctx context.Context, id string, status model.InviteStatus, attempts int, reason string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET status = ?, attempts = ?, last_attempt_at = ?, reason = ?, updated_at = ? WHERE id = ?`,
		string(status), attempts, now, reason, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update invitation delivery %s", id)
	}
	return checkRowsAffected(res, "invitation", id)
}

// RequeueInvitation returns a failed invitation to the delivery queue
// with a fresh attempt budget. The status guard makes requeue passes
// idempotent: an invitation that was delivered or hand-requeued in the
// meantime reports false instead of being re-sent.
func (s *SQLiteStore) RequeueInvitation(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE invitations SET status = ?, attempts = 0, reason = '', updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(model.InviteQueued), time.Now().UTC(), id, string(model.InviteFailed),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: requeue invitation %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: requeue invitation rows affected")
	}
	return n > 0, nil
}

// License registry

func (s *SQLiteStore) UpsertLicenses(ctx context.Context, rows []model.License) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert licenses")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO licenses
		 (id, state, license_number, business_name, classification, status, city, zip, phone, issued_at, expires_at, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (state, license_number) DO UPDATE SET
		   business_name = excluded.business_name, classification = excluded.classification,
		   status = excluded.status, city = excluded.city, zip = excluded.zip, phone = excluded.phone,
		   issued_at = excluded.issued_at, expires_at = excluded.expires_at, synced_at = excluded.synced_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert licenses")
	}
	defer stmt.Close()

	var total int64
	for _, l := range rows {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		syncedAt := l.SyncedAt
		if syncedAt.IsZero() {
			syncedAt = now
		}
		res, err := stmt.ExecContext(ctx, id, l.State, l.LicenseNumber, l.BusinessName,
			l.Classification, l.Status, l.City, l.Zip, l.Phone, l.IssuedAt, l.ExpiresAt, syncedAt)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert license %s/%s", l.State, l.LicenseNumber)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert license rows affected")
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert licenses")
	}
	return total, nil
}

func (s *SQLiteStore) CrossReferenceLicenses(ctx context.Context, state string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET
		   license_number = (SELECT l.license_number FROM licenses l WHERE l.state = ? AND l.phone = prospects.phone LIMIT 1),
		   updated_at = ?
		 WHERE license_number IS NULL AND phone IS NOT NULL
		   AND EXISTS (SELECT 1 FROM licenses l WHERE l.state = ? AND l.phone = prospects.phone)`,
		state, time.Now().UTC(), state,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: cross-reference licenses %s", state)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: cross-reference rows affected")
}

func (s *SQLiteStore) RecordLicenseSync(ctx context.Context, run *model.LicenseSyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO license_sync_log
		 (id, state, source_url, etag, rows_seen, rows_upserted, skipped, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.State, run.SourceURL, run.ETag, run.RowsSeen, run.RowsUpsert,
		run.Skipped, run.Error, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: record license sync")
}

func (s *SQLiteStore) LastLicenseSync(ctx context.Context, state string) (*model.LicenseSyncRun, error) {
	var run model.LicenseSyncRun
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state, source_url, etag, rows_seen, rows_upserted, skipped, error, started_at, finished_at
		 FROM license_sync_log WHERE state = ? ORDER BY started_at DESC LIMIT 1`,
		state,
	).Scan(&run.ID, &run.State, &run.SourceURL, &run.ETag, &run.RowsSeen, &run.RowsUpsert,
		&run.Skipped, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: last license sync %s", state)
	}
	return &run, nil
}

// Reporting

func (s *SQLiteStore) OutreachStats(ctx context.Context, since time.Time) (*OutreachStats, error) {
	stats := &OutreachStats{
		Since:                 since,
		ProspectsBySource:     map[string]int{},
		InvitationsByStatus:   map[string]int{},
		InvitationsByCategory: map[string]int{},
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM prospects WHERE created_at >= ?`, since,
	).Scan(&stats.ProspectsNew)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count prospects")
	}

	if err := s.groupCounts(ctx, stats.ProspectsBySource,
		`SELECT source, count(*) FROM prospects WHERE created_at >= ? GROUP BY source`, since); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, stats.InvitationsByStatus,
		`SELECT status, count(*) FROM invitations WHERE created_at >= ? GROUP BY status`, since); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, stats.InvitationsByCategory,
		`SELECT b.category, count(*) FROM invitations i JOIN bid_cards b ON b.id = i.bid_card_id
		 WHERE i.created_at >= ? GROUP BY b.category`, since); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) groupCounts(ctx context.Context, into map[string]int, query string, args ...any) error {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, "sqlite: group counts")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return eris.Wrap(err, "sqlite: scan group count")
		}
		into[key] = n
	}
	return eris.Wrap(rows.Err(), "sqlite: group counts iterate")
}

// Dead letter queue

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, invitation_id, bid_card_id, channel, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.InvitationID, entry.BidCardID, entry.Channel, entry.Error,
		entry.ErrorType, entry.RetryCount, entry.MaxRetries, entry.NextRetryAt,
		entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, invitation_id, bid_card_id, channel, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.Channel != "" {
		query += ` AND channel = ?`
		args = append(args, filter.Channel)
	}
	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.InvitationID, &e.BidCardID, &e.Channel, &e.Error,
			&e.ErrorType, &e.RetryCount, &e.MaxRetries, &e.NextRetryAt,
			&e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBidCard(row scannable) (*model.BidCard, error) {
	var bc model.BidCard
	var lat, lng *float64
	var metadataJSON *string

	err := row.Scan(&bc.ID, &bc.HomeownerID, &bc.Category, &bc.JobType, &bc.Description,
		&bc.BudgetMin, &bc.BudgetMax, &bc.City, &bc.State, &bc.ZipCode,
		&lat, &lng, &bc.MarketID, &bc.Status, &bc.EmbeddingDim, &bc.EmbeddingModel,
		&metadataJSON, &bc.CreatedAt, &bc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		bc.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if metadataJSON != nil && *metadataJSON != "" {
		if err := json.Unmarshal([]byte(*metadataJSON), &bc.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal bid card metadata")
		}
	}
	return &bc, nil
}

func scanBidCardWithEmbedding(row scannable) (*model.BidCard, []byte, error) {
	var bc model.BidCard
	var lat, lng *float64
	var metadataJSON *string
	var blob []byte

	err := row.Scan(&bc.ID, &bc.HomeownerID, &bc.Category, &bc.JobType, &bc.Description,
		&bc.BudgetMin, &bc.BudgetMax, &bc.City, &bc.State, &bc.ZipCode,
		&lat, &lng, &bc.MarketID, &bc.Status, &bc.EmbeddingDim, &bc.EmbeddingModel,
		&metadataJSON, &bc.CreatedAt, &bc.UpdatedAt, &blob)
	if err != nil {
		return nil, nil, err
	}
	if lat != nil && lng != nil {
		bc.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if metadataJSON != nil && *metadataJSON != "" {
		if err := json.Unmarshal([]byte(*metadataJSON), &bc.Metadata); err != nil {
			return nil, nil, eris.Wrap(err, "unmarshal bid card metadata")
		}
	}
	return &bc, blob, nil
}

func scanContractor(row scannable) (*model.Contractor, error) {
	var c model.Contractor
	var lat, lng *float64
	var categoriesJSON string

	err := row.Scan(&c.ID, &c.Name, &categoriesJSON, &lat, &lng, &c.Rating,
		&c.ActiveJobs, &c.MaxConcurrent, &c.AcceptRate30d, &c.Enabled,
		&c.Phone, &c.Email, &c.LicenseNumber, &c.MarketID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		c.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if categoriesJSON != "" {
		if err := json.Unmarshal([]byte(categoriesJSON), &c.Categories); err != nil {
			return nil, eris.Wrap(err, "unmarshal contractor categories")
		}
	}
	return &c, nil
}

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var lat, lng *float64
	var categoriesJSON string
	var raw *string

	err := row.Scan(&p.ID, &p.PlaceID, &p.Name, &p.Phone, &p.Email, &p.Website,
		&categoriesJSON, &lat, &lng, &p.Source, &raw, &p.LicenseNumber,
		&p.CRMSyncedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if categoriesJSON != "" {
		if err := json.Unmarshal([]byte(categoriesJSON), &p.Categories); err != nil {
			return nil, eris.Wrap(err, "unmarshal prospect categories")
		}
	}
	if raw != nil && *raw != "" {
		p.Raw = json.RawMessage(*raw)
	}
	return &p, nil
}

func scanInvitation(row scannable) (*model.Invitation, error) {
	var inv model.Invitation
	var response *string

	err := row.Scan(&inv.ID, &inv.BidCardID, &inv.ContractorID, &inv.ProspectID,
		&inv.Channel, &inv.Status, &inv.Attempts, &inv.LastAttemptAt, &inv.Reason,
		&response, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if response != nil && *response != "" {
		inv.Response = json.RawMessage(*response)
	}
	return &inv, nil
}
