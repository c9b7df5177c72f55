package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/db"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_bid_card":       `SELECT ` + bidCardColumns + ` FROM bid_cards WHERE id = $1`,
	"set_embedding":      `UPDATE bid_cards SET embedding = $2::vector, embedding_dim = $3, embedding_model = $4, updated_at = $5 WHERE id = $1`,
	"queued_invitations": `SELECT ` + invitationColumns + ` FROM invitations WHERE status = 'queued' ORDER BY created_at ASC LIMIT $1`,
	"update_delivery":    `UPDATE invitations SET status = $2, attempts = $3, last_attempt_at = $4, reason = $5, updated_at = $4 WHERE id = $1`,
	"prospect_by_place":  `SELECT ` + prospectColumns + ` FROM prospects WHERE place_id = $1 LIMIT 1`,
	"prospect_by_phone":  `SELECT ` + prospectColumns + ` FROM prospects WHERE lower(phone) = lower($1) LIMIT 1`,
	"prospect_by_email":  `SELECT ` + prospectColumns + ` FROM prospects WHERE lower(email) = lower($1) LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const (
	bidCardColumns    = `id, homeowner_id, category, job_type, description, budget_min, budget_max, city, state, zip_code, lat, lng, market_id, status, embedding_dim, embedding_model, metadata, created_at, updated_at`
	contractorColumns = `id, name, categories, lat, lng, rating, active_jobs, max_concurrent, accept_rate_30d, enabled, phone, email, license_number, market_id, created_at, updated_at`
	prospectColumns   = `id, place_id, name, phone, email, website, categories, lat, lng, source, raw, license_number, crm_synced_at, created_at, updated_at`
	invitationColumns = `id, bid_card_id, contractor_id, prospect_id, channel, status, attempts, last_attempt_at, reason, response, created_at, updated_at`
)

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS bid_cards (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	homeowner_id    TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL,
	job_type        TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	budget_min      DOUBLE PRECISION,
	budget_max      DOUBLE PRECISION,
	city            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	zip_code        TEXT NOT NULL DEFAULT '',
	lat             DOUBLE PRECISION,
	lng             DOUBLE PRECISION,
	market_id       TEXT,
	status          TEXT NOT NULL DEFAULT 'collecting_bids',
	embedding       vector,
	embedding_dim   INTEGER NOT NULL DEFAULT 0,
	embedding_model TEXT NOT NULL DEFAULT '',
	metadata        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bid_cards_category ON bid_cards(category);
CREATE INDEX IF NOT EXISTS idx_bid_cards_status ON bid_cards(status);
CREATE INDEX IF NOT EXISTS idx_bid_cards_market_id ON bid_cards(market_id);

CREATE TABLE IF NOT EXISTS contractors (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	categories      JSONB NOT NULL DEFAULT '[]',
	lat             DOUBLE PRECISION,
	lng             DOUBLE PRECISION,
	rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
	active_jobs     INTEGER NOT NULL DEFAULT 0,
	max_concurrent  INTEGER NOT NULL DEFAULT 1,
	accept_rate_30d DOUBLE PRECISION NOT NULL DEFAULT 0,
	enabled         BOOLEAN NOT NULL DEFAULT true,
	phone           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	license_number  TEXT,
	market_id       TEXT,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_contractors_enabled_coords ON contractors(enabled, lat, lng);
CREATE INDEX IF NOT EXISTS idx_contractors_categories ON contractors USING GIN (categories);

CREATE TABLE IF NOT EXISTS match_results (
	id             TEXT PRIMARY KEY,
	bid_card_id    TEXT NOT NULL,
	contractor_id  TEXT NOT NULL,
	distance_miles DOUBLE PRECISION,
	score          DOUBLE PRECISION NOT NULL,
	rank           INTEGER NOT NULL,
	computed_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_match_results_bid_card ON match_results(bid_card_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS prospects (
	id             TEXT PRIMARY KEY,
	place_id       TEXT,
	name           TEXT NOT NULL,
	phone          TEXT,
	email          TEXT,
	website        TEXT,
	categories     JSONB NOT NULL DEFAULT '[]',
	lat            DOUBLE PRECISION,
	lng            DOUBLE PRECISION,
	source         TEXT NOT NULL DEFAULT '',
	raw            JSONB,
	license_number TEXT,
	crm_synced_at  TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_place_id ON prospects(place_id) WHERE place_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_phone ON prospects(lower(phone)) WHERE phone IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS uq_prospects_email ON prospects(lower(email)) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_prospects_unsynced ON prospects(created_at) WHERE crm_synced_at IS NULL;

CREATE TABLE IF NOT EXISTS invitations (
	id              TEXT PRIMARY KEY,
	bid_card_id     TEXT NOT NULL,
	contractor_id   TEXT,
	prospect_id     TEXT,
	channel         TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	attempts        INTEGER NOT NULL DEFAULT 0,
	last_attempt_at TIMESTAMPTZ,
	reason          TEXT NOT NULL DEFAULT '',
	response        JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	issued_at      TIMESTAMPTZ,
	expires_at     TIMESTAMPTZ,
	synced_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	skipped       BOOLEAN NOT NULL DEFAULT false,
	error         TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL
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
	next_retry_at  TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_failed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

// postgresGeoMigration is applied separately by MigrateGeo so deployments
// without PostGIS can still run the core schema.
const postgresGeoMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS markets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL,
	slug       TEXT NOT NULL UNIQUE,
	boundary   geometry(MultiPolygon, 4326) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_markets_boundary ON markets USING GIST (boundary);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// MigrateGeo creates the PostGIS extension and the markets table.
func (s *PostgresStore) MigrateGeo(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresGeoMigration)
	return eris.Wrap(err, "postgres: migrate geo")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Bid cards

func (s *PostgresStore) CreateBidCard(ctx context.Context, bc *model.BidCard) error {
	if bc.ID == "" {
		bc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	bc.CreatedAt = now
	bc.UpdatedAt = now
	if bc.Status == "" {
		bc.Status = model.BidCardStatusCollecting
	}

	var metadataJSON []byte
	if bc.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(bc.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal bid card metadata")
		}
	}

	var lat, lng *float64
	if bc.Location != nil {
		lat, lng = &bc.Location.Lat, &bc.Location.Lng
	}

	var embedding any
	if len(bc.Embedding) > 0 {
		embedding = db.VectorLiteral(bc.Embedding)
		bc.EmbeddingDim = len(bc.Embedding)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO bid_cards
		 (id, homeowner_id, category, job_type, description, budget_min, budget_max, city, state, zip_code,
		  lat, lng, market_id, status, embedding, embedding_dim, embedding_model, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15::vector, $16, $17, $18, $19, $20)`,
		bc.ID, bc.HomeownerID, string(bc.Category), bc.JobType, bc.Description,
		bc.BudgetMin, bc.BudgetMax, bc.City, bc.State, bc.ZipCode,
		lat, lng, bc.MarketID, string(bc.Status),
		embedding, bc.EmbeddingDim, bc.EmbeddingModel, metadataJSON, now, now,
	)
	return eris.Wrap(err, "postgres: insert bid card")
}

func (s *PostgresStore) GetBidCard(ctx context.Context, id string) (*model.BidCard, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bidCardColumns+` FROM bid_cards WHERE id = $1`, id)
	bc, err := scanPGBidCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get bid card %s", id)
	}
	return bc, nil
}

func (s *PostgresStore) UpdateBidCardEmbedding(ctx context.Context, id string, embedding []float32, embeddingModel string) error {
	var lit any
	dim := 0
	if len(embedding) > 0 {
		lit = db.VectorLiteral(embedding)
		dim = len(embedding)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE bid_cards SET embedding = $2::vector, embedding_dim = $3, embedding_model = $4, updated_at = $5 WHERE id = $1`,
		id, lit, dim, embeddingModel, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update bid card embedding %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("bid card not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListBidCardsForBackfill(ctx context.Context, embeddingModel string, limit int) ([]model.BidCard, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidCardColumns+` FROM bid_cards
		 WHERE embedding IS NULL OR embedding_model <> $1
		 ORDER BY created_at ASC LIMIT $2`,
		embeddingModel, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bid cards for backfill")
	}
	defer rows.Close()

	var cards []model.BidCard
	for rows.Next() {
		bc, err := scanPGBidCard(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan bid card")
		}
		cards = append(cards, *bc)
	}
	return cards, eris.Wrap(rows.Err(), "postgres: list bid cards iterate")
}

func (s *PostgresStore) SearchBidCards(ctx context.Context, q SearchQuery) ([]model.ScoredBidCard, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	hasText := q.Text != ""
	pattern := "%" + q.Text + "%"

	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case len(q.Embedding) > 0:
		// One pass: lexical hits keep their similarity when the embedding
		// is comparable, embedding-only hits must clear the threshold. An
		// empty query text is never a lexical hit.
		rows, err = s.pool.Query(ctx,
			`SELECT `+bidCardColumns+`,
			        CASE WHEN embedding IS NOT NULL AND embedding_dim = $2
			             THEN 1 - (embedding <=> $1::vector)
			             ELSE 0 END AS score
			 FROM bid_cards
			 WHERE ($3 AND (job_type ILIKE $4 OR category ILIKE $4))
			    OR (embedding IS NOT NULL AND embedding_dim = $2 AND 1 - (embedding <=> $1::vector) >= $5)
			 ORDER BY score DESC, id ASC
			 LIMIT $6`,
			db.VectorLiteral(q.Embedding), len(q.Embedding), hasText, pattern, q.Threshold, limit,
		)
	case hasText:
		rows, err = s.pool.Query(ctx,
			`SELECT `+bidCardColumns+`, 0::float8 AS score
			 FROM bid_cards
			 WHERE job_type ILIKE $1 OR category ILIKE $1
			 ORDER BY id ASC
			 LIMIT $2`,
			pattern, limit,
		)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search bid cards")
	}
	defer rows.Close()

	var results []model.ScoredBidCard
	for rows.Next() {
		sc, err := scanPGScoredBidCard(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search result")
		}
		results = append(results, *sc)
	}
	return results, eris.Wrap(rows.Err(), "postgres: search bid cards iterate")
}

// Contractors

func (s *PostgresStore) UpsertContractor(ctx context.Context, c *model.Contractor) error {
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
		return eris.Wrap(err, "postgres: marshal contractor categories")
	}

	var lat, lng *float64
	if c.Location != nil {
		lat, lng = &c.Location.Lat, &c.Location.Lng
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO contractors
		 (id, name, categories, lat, lng, rating, active_jobs, max_concurrent, accept_rate_30d, enabled,
		  phone, email, license_number, market_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (id) DO UPDATE SET
		   name = $2, categories = $3, lat = $4, lng = $5, rating = $6, active_jobs = $7,
		   max_concurrent = $8, accept_rate_30d = $9, enabled = $10, phone = $11, email = $12,
		   license_number = $13, market_id = $14, updated_at = $16`,
		c.ID, c.Name, categoriesJSON, lat, lng, c.Rating, c.ActiveJobs, c.MaxConcurrent,
		c.AcceptRate30d, c.Enabled, c.Phone, c.Email, c.LicenseNumber, c.MarketID,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert contractor")
}

func (s *PostgresStore) GetContractor(ctx context.Context, id string) (*model.Contractor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id)
	c, err := scanPGContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contractor %s", id)
	}
	return c, nil
}

func (s *PostgresStore) FetchCandidates(ctx context.Context, q CandidateQuery) ([]model.Contractor, error) {
	query := `SELECT ` + contractorColumns + ` FROM contractors WHERE enabled = true`
	args := []any{}
	argIdx := 1

	if q.BBox != nil {
		// Contractors without coordinates stay in the pool; the scorer
		// applies the unknown-distance half credit.
		query += fmt.Sprintf(` AND (lat IS NULL OR (lat BETWEEN $%d AND $%d AND lng BETWEEN $%d AND $%d))`,
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, q.BBox.MinLat, q.BBox.MaxLat, q.BBox.MinLng, q.BBox.MaxLng)
		argIdx += 4
	}
	if q.Category != "" {
		catJSON, err := json.Marshal([]model.Category{q.Category})
		if err != nil {
			return nil, eris.Wrap(err, "postgres: marshal category filter")
		}
		query += fmt.Sprintf(` AND categories @> $%d::jsonb`, argIdx)
		args = append(args, string(catJSON))
		argIdx++
	}

	query += ` ORDER BY id ASC`

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch candidates")
	}
	defer rows.Close()

	var candidates []model.Contractor
	for rows.Next() {
		c, err := scanPGContractor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		candidates = append(candidates, *c)
	}
	return candidates, eris.Wrap(rows.Err(), "postgres: fetch candidates iterate")
}

// Match results

var matchResultColumns = []string{"id", "bid_card_id", "contractor_id", "distance_miles", "score", "rank", "computed_at"}

func (s *PostgresStore) SaveMatchResults(ctx context.Context, results []model.MatchResult) error {
	if len(results) == 0 {
		return nil
	}
	// Rows from one run share a computed_at so LatestMatches can group by
	// it; only fill blanks, the matcher normally stamps the batch itself.
	batchNow := time.Now().UTC()
	data := make([][]any, 0, len(results))
	for _, r := range results {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.ComputedAt.IsZero() {
			r.ComputedAt = batchNow
		}
		data = append(data, []any{r.ID, r.BidCardID, r.ContractorID, r.DistanceMiles, r.Score, r.Rank, r.ComputedAt})
	}
	_, err := db.CopyFrom(ctx, s.pool, "match_results", matchResultColumns, data)
	return eris.Wrap(err, "postgres: save match results")
}

func (s *PostgresStore) LatestMatches(ctx context.Context, bidCardID string) ([]model.MatchResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bid_card_id, contractor_id, distance_miles, score, rank, computed_at
		 FROM match_results
		 WHERE bid_card_id = $1
		   AND computed_at = (SELECT max(computed_at) FROM match_results WHERE bid_card_id = $1)
		 ORDER BY rank ASC`,
		bidCardID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest matches %s", bidCardID)
	}
	defer rows.Close()

	var results []model.MatchResult
	for rows.Next() {
		var r model.MatchResult
		if err := rows.Scan(&r.ID, &r.BidCardID, &r.ContractorID, &r.DistanceMiles, &r.Score, &r.Rank, &r.ComputedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan match result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: latest matches iterate")
}

// Prospects

func (s *PostgresStore) FindProspect(ctx context.Context, placeID, phone, email string) (*model.Prospect, error) {
	type lookup struct {
		clause string
		key    string
	}
	var lookups []lookup
	if placeID != "" {
		lookups = append(lookups, lookup{`place_id = $1`, placeID})
	}
	if phone != "" {
		lookups = append(lookups, lookup{`lower(phone) = lower($1)`, phone})
	}
	if email != "" {
		lookups = append(lookups, lookup{`lower(email) = lower($1)`, email})
	}

	for _, lk := range lookups {
		row := s.pool.QueryRow(ctx,
			`SELECT `+prospectColumns+` FROM prospects WHERE `+lk.clause+` LIMIT 1`, lk.key)
		p, err := scanPGProspect(row)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, eris.Wrap(err, "postgres: find prospect")
		}
		return p, nil
	}
	return nil, nil
}

func (s *PostgresStore) CreateProspect(ctx context.Context, p *model.Prospect) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	categoriesJSON, err := json.Marshal(p.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal prospect categories")
	}

	var lat, lng *float64
	if p.Location != nil {
		lat, lng = &p.Location.Lat, &p.Location.Lng
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prospects
		 (id, place_id, name, phone, email, website, categories, lat, lng, source, raw, license_number, crm_synced_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.PlaceID, p.Name, p.Phone, p.Email, p.Website, categoriesJSON,
		lat, lng, p.Source, []byte(p.Raw), p.LicenseNumber, p.CRMSyncedAt, now, now,
	)
	return eris.Wrap(err, "postgres: insert prospect")
}

func (s *PostgresStore) RefreshProspect(ctx context.Context, p *model.Prospect) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET
		   raw = $2,
		   phone = COALESCE(phone, $3),
		   email = COALESCE(email, $4),
		   website = COALESCE(website, $5),
		   updated_at = $6
		 WHERE id = $1`,
		p.ID, []byte(p.Raw), p.Phone, p.Email, p.Website, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: refresh prospect %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) ListUnsyncedProspects(ctx context.Context, limit int) ([]model.Prospect, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+prospectColumns+` FROM prospects
		 WHERE crm_synced_at IS NULL
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unsynced prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanPGProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: list unsynced prospects iterate")
}

func (s *PostgresStore) MarkProspectsSynced(ctx context.Context, ids []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE prospects SET crm_synced_at = $1, updated_at = $1 WHERE id = ANY($2)`,
		syncedAt.UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark prospects synced")
}

// Invitations

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv *model.Invitation) (bool, error) {
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

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO invitations
		 (id, bid_card_id, contractor_id, prospect_id, channel, status, attempts, last_attempt_at, reason, response, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT `+conflict+` DO NOTHING`,
		inv.ID, inv.BidCardID, inv.ContractorID, inv.ProspectID, string(inv.Channel),
		string(inv.Status), inv.Attempts, inv.LastAttemptAt, inv.Reason, []byte(inv.Response),
		now, now,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert invitation")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ListQueuedInvitations(ctx context.Context, limit int) ([]model.Invitation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+invitationColumns+` FROM invitations WHERE status = 'queued' ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list queued invitations")
	}
	defer rows.Close()

	var invs []model.Invitation
	for rows.Next() {
		inv, err := scanPGInvitation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan invitation")
		}
		invs = append(invs, *inv)
	}
	return invs, eris.Wrap(rows.Err(), "postgres: list queued invitations iterate")
}

func (s *PostgresStore) UpdateInvitationDelivery(ctx context.Context, id string, status model.InviteStatus, attempts int, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invitations SET status = $2, attempts = $3, last_attempt_at = $4, reason = $5, updated_at = $4 WHERE id = $1`,
		id, string(status), attempts, time.Now().UTC(), reason,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update invitation delivery %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("invitation not found: %s", id)
	}
	return nil
}

// RequeueInvitation returns a failed invitation to the delivery queue
// with a fresh attempt budget. The status guard makes requeue passes
// idempotent: an invitation that was delivered or hand-requeued in the
// meantime reports false instead of being re-sent.
func (s *PostgresStore) RequeueInvitation(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE invitations SET status = $2, attempts = 0, reason = '', updated_at = now()
		 WHERE id = $1 AND status = $3`,
		id, string(model.InviteQueued), string(model.InviteFailed),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: requeue invitation %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

// License registry

var licenseUpsertConfig = db.UpsertConfig{
	Table:        "licenses",
	Columns:      []string{"id", "state", "license_number", "business_name", "classification", "status", "city", "zip", "phone", "issued_at", "expires_at", "synced_at"},
	ConflictKeys: []string{"state", "license_number"},
	UpdateCols:   []string{"business_name", "classification", "status", "city", "zip", "phone", "issued_at", "expires_at", "synced_at"},
}

func (s *PostgresStore) UpsertLicenses(ctx context.Context, rows []model.License) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	data := make([][]any, 0, len(rows))
	for _, l := range rows {
		id := l.ID
		if id == "" {
			id = uuid.New().String()
		}
		syncedAt := l.SyncedAt
		if syncedAt.IsZero() {
			syncedAt = now
		}
		data = append(data, []any{id, l.State, l.LicenseNumber, l.BusinessName, l.Classification,
			l.Status, l.City, l.Zip, l.Phone, l.IssuedAt, l.ExpiresAt, syncedAt})
	}
	n, err := db.BulkUpsert(ctx, s.pool, licenseUpsertConfig, data)
	return n, eris.Wrap(err, "postgres: upsert licenses")
}

func (s *PostgresStore) CrossReferenceLicenses(ctx context.Context, state string) (int64, error) {
	// Phones are stored E.164-normalized on both sides, so equality is
	// the whole join.
	tag, err := s.pool.Exec(ctx,
		`UPDATE prospects SET license_number = l.license_number, updated_at = $2
		 FROM licenses l
		 WHERE prospects.license_number IS NULL
		   AND prospects.phone IS NOT NULL
		   AND l.state = $1
		   AND l.phone = prospects.phone`,
		state, time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: cross-reference licenses %s", state)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) RecordLicenseSync(ctx context.Context, run *model.LicenseSyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO license_sync_log
		 (id, state, source_url, etag, rows_seen, rows_upserted, skipped, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.State, run.SourceURL, run.ETag, run.RowsSeen, run.RowsUpsert,
		run.Skipped, run.Error, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "postgres: record license sync")
}

func (s *PostgresStore) LastLicenseSync(ctx context.Context, state string) (*model.LicenseSyncRun, error) {
	var run model.LicenseSyncRun
	err := s.pool.QueryRow(ctx,
		`SELECT id, state, source_url, etag, rows_seen, rows_upserted, skipped, error, started_at, finished_at
		 FROM license_sync_log WHERE state = $1 ORDER BY started_at DESC LIMIT 1`,
		state,
	).Scan(&run.ID, &run.State, &run.SourceURL, &run.ETag, &run.RowsSeen, &run.RowsUpsert,
		&run.Skipped, &run.Error, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: last license sync %s", state)
	}
	return &run, nil
}

// Reporting

func (s *PostgresStore) OutreachStats(ctx context.Context, since time.Time) (*OutreachStats, error) {
	stats := &OutreachStats{
		Since:                 since,
		ProspectsBySource:     map[string]int{},
		InvitationsByStatus:   map[string]int{},
		InvitationsByCategory: map[string]int{},
	}

	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM prospects WHERE created_at >= $1`, since,
	).Scan(&stats.ProspectsNew)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count prospects")
	}

	if err := s.groupCounts(ctx, stats.ProspectsBySource,
		`SELECT source, count(*) FROM prospects WHERE created_at >= $1 GROUP BY source`, since); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, stats.InvitationsByStatus,
		`SELECT status, count(*) FROM invitations WHERE created_at >= $1 GROUP BY status`, since); err != nil {
		return nil, err
	}
	if err := s.groupCounts(ctx, stats.InvitationsByCategory,
		`SELECT b.category, count(*) FROM invitations i JOIN bid_cards b ON b.id = i.bid_card_id
		 WHERE i.created_at >= $1 GROUP BY b.category`, since); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *PostgresStore) groupCounts(ctx context.Context, into map[string]int, query string, args ...any) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return eris.Wrap(err, "postgres: group counts")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return eris.Wrap(err, "postgres: scan group count")
		}
		into[key] = n
	}
	return eris.Wrap(rows.Err(), "postgres: group counts iterate")
}

// Dead letter queue

func (s *PostgresStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dead_letter_queue
		 (id, invitation_id, bid_card_id, channel, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   error = $5, error_type = $6, retry_count = $7, next_retry_at = $9, last_failed_at = $11`,
		entry.ID, entry.InvitationID, entry.BidCardID, entry.Channel, entry.Error,
		entry.ErrorType, entry.RetryCount, entry.MaxRetries, entry.NextRetryAt,
		entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "postgres: enqueue dlq")
}

func (s *PostgresStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, invitation_id, bid_card_id, channel, error, error_type, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= now() AND retry_count < max_retries`
	args := []any{}
	argIdx := 1

	if filter.Channel != "" {
		query += fmt.Sprintf(` AND channel = $%d`, argIdx)
		args = append(args, filter.Channel)
		argIdx++
	}
	if filter.ErrorType != "" {
		query += fmt.Sprintf(` AND error_type = $%d`, argIdx)
		args = append(args, filter.ErrorType)
		argIdx++
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.InvitationID, &e.BidCardID, &e.Channel, &e.Error,
			&e.ErrorType, &e.RetryCount, &e.MaxRetries, &e.NextRetryAt,
			&e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: dequeue dlq iterate")
}

func (s *PostgresStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = $1, error = $2, last_failed_at = now()
		 WHERE id = $3`,
		nextRetryAt, lastErr, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment dlq retry %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("dlq_entry not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM dead_letter_queue WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: remove dlq")
}

func (s *PostgresStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count dlq")
}

// Markets

var marketUpsertConfig = db.UpsertConfig{
	Table:        "markets",
	Columns:      []string{"id", "name", "state", "slug", "boundary", "created_at", "updated_at"},
	ConflictKeys: []string{"slug"},
	UpdateCols:   []string{"name", "state", "boundary", "updated_at"},
}

// LoadMarkets bulk-loads market boundary polygons. Reloads are idempotent
// on slug.
func (s *PostgresStore) LoadMarkets(ctx context.Context, rows []MarketBoundary) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		id := r.Market.ID
		if id == "" {
			id = uuid.New().String()
		}
		data = append(data, []any{id, r.Market.Name, r.Market.State, r.Market.Slug, r.Boundary, now, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, marketUpsertConfig, data)
	return n, eris.Wrap(err, "postgres: load markets")
}

// AssignMarket sets the bid card's market by point-in-polygon containment
// and returns the market id, or nil when no market contains the card's
// location (or the card has none).
func (s *PostgresStore) AssignMarket(ctx context.Context, bidCardID string) (*string, error) {
	var marketID string
	err := s.pool.QueryRow(ctx,
		`UPDATE bid_cards b SET market_id = m.id, updated_at = now()
		 FROM markets m
		 WHERE b.id = $1 AND b.lat IS NOT NULL AND b.lng IS NOT NULL
		   AND ST_Contains(m.boundary, ST_SetSRID(ST_MakePoint(b.lng, b.lat), 4326))
		 RETURNING m.id`,
		bidCardID,
	).Scan(&marketID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: assign market %s", bidCardID)
	}
	return &marketID, nil
}

// row scanning

func scanPGBidCard(row pgx.Row) (*model.BidCard, error) {
	var bc model.BidCard
	var lat, lng *float64
	var metadataJSON []byte

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
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &bc.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal bid card metadata")
		}
	}
	return &bc, nil
}

func scanPGScoredBidCard(row pgx.Row) (*model.ScoredBidCard, error) {
	var sc model.ScoredBidCard
	var lat, lng *float64
	var metadataJSON []byte

	err := row.Scan(&sc.ID, &sc.HomeownerID, &sc.Category, &sc.JobType, &sc.Description,
		&sc.BudgetMin, &sc.BudgetMax, &sc.City, &sc.State, &sc.ZipCode,
		&lat, &lng, &sc.MarketID, &sc.Status, &sc.EmbeddingDim, &sc.EmbeddingModel,
		&metadataJSON, &sc.CreatedAt, &sc.UpdatedAt, &sc.Score)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		sc.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sc.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal bid card metadata")
		}
	}
	return &sc, nil
}

func scanPGContractor(row pgx.Row) (*model.Contractor, error) {
	var c model.Contractor
	var lat, lng *float64
	var categoriesJSON []byte

	err := row.Scan(&c.ID, &c.Name, &categoriesJSON, &lat, &lng, &c.Rating,
		&c.ActiveJobs, &c.MaxConcurrent, &c.AcceptRate30d, &c.Enabled,
		&c.Phone, &c.Email, &c.LicenseNumber, &c.MarketID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		c.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &c.Categories); err != nil {
			return nil, eris.Wrap(err, "unmarshal contractor categories")
		}
	}
	return &c, nil
}

func scanPGProspect(row pgx.Row) (*model.Prospect, error) {
	var p model.Prospect
	var lat, lng *float64
	var categoriesJSON, rawJSON []byte

	err := row.Scan(&p.ID, &p.PlaceID, &p.Name, &p.Phone, &p.Email, &p.Website,
		&categoriesJSON, &lat, &lng, &p.Source, &rawJSON, &p.LicenseNumber,
		&p.CRMSyncedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		p.Location = &model.LatLng{Lat: *lat, Lng: *lng}
	}
	if len(categoriesJSON) > 0 {
		if err := json.Unmarshal(categoriesJSON, &p.Categories); err != nil {
			return nil, eris.Wrap(err, "unmarshal prospect categories")
		}
	}
	if len(rawJSON) > 0 {
		p.Raw = json.RawMessage(rawJSON)
	}
	return &p, nil
}

func scanPGInvitation(row pgx.Row) (*model.Invitation, error) {
	var inv model.Invitation
	var responseJSON []byte

	err := row.Scan(&inv.ID, &inv.BidCardID, &inv.ContractorID, &inv.ProspectID,
		&inv.Channel, &inv.Status, &inv.Attempts, &inv.LastAttemptAt, &inv.Reason,
		&responseJSON, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(responseJSON) > 0 {
		inv.Response = json.RawMessage(responseJSON)
	}
	return &inv, nil
}
