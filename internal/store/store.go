// Package store persists bid cards, contractors, match results, and the
// outreach pipeline (prospects, invitations, dead letters) behind a single
// interface. PostgreSQL is the production backend (pgvector similarity,
// PostGIS market assignment); SQLite serves local development and tests.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/homebid/match-cli/internal/geo"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/resilience"
)

// DefaultCandidateLimit bounds a single candidate fetch when the caller
// does not set one.
const DefaultCandidateLimit = 500

// CandidateQuery narrows the contractor pool for one matching run.
// Contractors without coordinates pass the bounding-box filter; the scorer
// handles their unknown distance.
type CandidateQuery struct {
	BBox     *geo.BBox      `json:"bbox,omitempty"`     // nil = no spatial pre-filter
	Category model.Category `json:"category,omitempty"` // "" = all categories
	Limit    int            `json:"limit,omitempty"`    // <= 0 = DefaultCandidateLimit
}

// SearchQuery describes one hybrid bid-card search: a lexical needle plus
// an optional query embedding. Items without a comparable embedding can
// only match lexically and score 0.
type SearchQuery struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Threshold float64   `json:"threshold"` // minimum similarity for embedding-only hits
	Limit     int       `json:"limit"`
}

// SubstringMatch reports whether needle occurs in haystack, ignoring case.
// It is the lexical predicate of hybrid search.
func SubstringMatch(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// OutreachStats aggregates prospect and invitation activity since a
// cutoff for the ops report.
type OutreachStats struct {
	Since                 time.Time      `json:"since"`
	ProspectsNew          int            `json:"prospects_new"`
	ProspectsBySource     map[string]int `json:"prospects_by_source,omitempty"`
	InvitationsByStatus   map[string]int `json:"invitations_by_status,omitempty"`
	InvitationsByCategory map[string]int `json:"invitations_by_category,omitempty"`
}

// Store defines the persistence interface for the matching engine.
type Store interface {
	// Bid cards
	CreateBidCard(ctx context.Context, bc *model.BidCard) error
	GetBidCard(ctx context.Context, id string) (*model.BidCard, error)
	UpdateBidCardEmbedding(ctx context.Context, id string, embedding []float32, embeddingModel string) error
	ListBidCardsForBackfill(ctx context.Context, embeddingModel string, limit int) ([]model.BidCard, error)
	SearchBidCards(ctx context.Context, q SearchQuery) ([]model.ScoredBidCard, error)

	// Contractors
	UpsertContractor(ctx context.Context, c *model.Contractor) error
	GetContractor(ctx context.Context, id string) (*model.Contractor, error)
	FetchCandidates(ctx context.Context, q CandidateQuery) ([]model.Contractor, error)

	// Match results (append-only; one run shares a computed_at)
	SaveMatchResults(ctx context.Context, results []model.MatchResult) error
	LatestMatches(ctx context.Context, bidCardID string) ([]model.MatchResult, error)

	// Prospects
	FindProspect(ctx context.Context, placeID, phone, email string) (*model.Prospect, error)
	CreateProspect(ctx context.Context, p *model.Prospect) error
	RefreshProspect(ctx context.Context, p *model.Prospect) error
	ListUnsyncedProspects(ctx context.Context, limit int) ([]model.Prospect, error)
	MarkProspectsSynced(ctx context.Context, ids []string, syncedAt time.Time) error

	// Invitations
	CreateInvitation(ctx context.Context, inv *model.Invitation) (bool, error)
	ListQueuedInvitations(ctx context.Context, limit int) ([]model.Invitation, error)
	UpdateInvitationDelivery(ctx context.Context, id string, status model.InviteStatus, attempts int, reason string) error
	RequeueInvitation(ctx context.Context, id string) (bool, error)

	// License registry
	UpsertLicenses(ctx context.Context, rows []model.License) (int64, error)
	CrossReferenceLicenses(ctx context.Context, state string) (int64, error)
	RecordLicenseSync(ctx context.Context, run *model.LicenseSyncRun) error
	LastLicenseSync(ctx context.Context, state string) (*model.LicenseSyncRun, error)

	// Reporting
	OutreachStats(ctx context.Context, since time.Time) (*OutreachStats, error)

	// Dead letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// MarketBoundary pairs a market row with its boundary geometry as EWKB
// (SRID 4326), ready for loading into the markets table.
type MarketBoundary struct {
	Market   model.Market
	Boundary []byte
}

// GeoStore is implemented by backends with geospatial support. Market
// loading and point-in-polygon assignment are PostGIS features; the
// SQLite backend does not provide them and callers skip market handling
// when the assertion fails.
type GeoStore interface {
	MigrateGeo(ctx context.Context) error
	LoadMarkets(ctx context.Context, rows []MarketBoundary) (int64, error)
	AssignMarket(ctx context.Context, bidCardID string) (*string, error)
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// from either backend. The escalator uses it to resolve concurrent
// prospect inserts to the reuse path.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
