// Package outreach widens a thin contractor pool. The escalator discovers
// prospects from a business directory and queues invitations; the worker
// delivers them.
package outreach

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/homebid/match-cli/internal/config"
	"github.com/homebid/match-cli/internal/geo"
	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
	"github.com/homebid/match-cli/pkg/places"
)

const metersPerMile = 1609.344

// categoryKeywords maps each job category to the directory search terms
// used to find matching businesses near a job site.
var categoryKeywords = map[model.Category][]string{
	model.CategoryRepair:       {"home repair contractor", "handyman service"},
	model.CategoryRenovation:   {"remodeling contractor", "home renovation"},
	model.CategoryInstallation: {"installation contractor", "home installation service"},
	model.CategoryMaintenance:  {"property maintenance service", "home maintenance"},
	model.CategoryConstruction: {"general contractor", "construction company"},
	model.CategoryOther:        {"general contractor"},
}

// CategoryKeywords returns the directory search terms for a category,
// falling back to the generic set for unknown values.
func CategoryKeywords(c model.Category) []string {
	if kws, ok := categoryKeywords[c]; ok {
		return kws
	}
	return categoryKeywords[model.CategoryOther]
}

// Store is the persistence surface the escalator needs.
type Store interface {
	FindProspect(ctx context.Context, placeID, phone, email string) (*model.Prospect, error)
	CreateProspect(ctx context.Context, p *model.Prospect) error
	RefreshProspect(ctx context.Context, p *model.Prospect) error
	CreateInvitation(ctx context.Context, inv *model.Invitation) (bool, error)
}

// Escalator discovers unregistered businesses near a bid card's location
// and seeds them as prospects with queued invitations. Storage-level
// uniqueness is the only concurrency control: racing escalations resolve
// duplicate inserts to the reuse path.
type Escalator struct {
	store         Store
	directory     places.Client
	limiter       *rate.Limiter
	cfg           *config.OutreachConfig
	placesCfg     *config.PlacesConfig
	lookupTimeout time.Duration
}

// NewEscalator creates an Escalator. lookupTimeout bounds each directory
// call when positive.
func NewEscalator(st Store, directory places.Client, cfg *config.OutreachConfig, placesCfg *config.PlacesConfig, lookupTimeout time.Duration) *Escalator {
	rps := placesCfg.RPS
	if rps <= 0 {
		rps = 5
	}
	return &Escalator{
		store:         st,
		directory:     directory,
		limiter:       rate.NewLimiter(rate.Limit(rps), 1),
		cfg:           cfg,
		placesCfg:     placesCfg,
		lookupTimeout: lookupTimeout,
	}
}

// Escalate runs one discovery pass for a bid card. Directory lookups run
// concurrently per keyword; a failed lookup degrades to zero results for
// that keyword and is counted, never fatal. Re-running with identical
// directory data is idempotent: prospects dedupe on place_id/phone/email
// and invitations on (bid_card_id, prospect_id).
func (e *Escalator) Escalate(ctx context.Context, bc model.BidCard, knownContractorIDs []string) (model.EscalationSummary, error) {
	summary := model.EscalationSummary{BidCardID: bc.ID}
	if bc.Location == nil {
		return summary, eris.New("outreach: bid card has no coordinates")
	}

	log := zap.L().With(zap.String("bid_card_id", bc.ID))

	keywords := CategoryKeywords(bc.Category)

	var (
		mu       sync.Mutex
		merged   = make(map[string]places.Place)
		failures int
	)

	concurrency := e.cfg.LookupConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, kw := range keywords {
		g.Go(func() error {
			found, err := e.lookup(gctx, *bc.Location, kw)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("directory lookup failed", zap.String("keyword", kw), zap.Error(err))
				failures++
				return nil
			}
			for _, p := range found {
				merged[p.ID] = p
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck

	summary.LookupFailures = failures
	summary.Discovered = len(merged)

	known := make(map[string]struct{}, len(knownContractorIDs))
	for _, id := range knownContractorIDs {
		known[id] = struct{}{}
	}

	// Deterministic seeding order across runs.
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seedLimit := e.cfg.SeedLimit
	if seedLimit <= 0 {
		seedLimit = 10
	}

	seeded := 0
	for _, id := range ids {
		if seeded >= seedLimit {
			break
		}
		p := merged[id]
		if _, ok := known[p.ID]; ok {
			continue
		}
		if p.ID == "" || p.DisplayName.Text == "" {
			log.Warn("skipping non-actionable entity", zap.String("place_id", p.ID))
			continue
		}

		prospect, created, err := e.seedProspect(ctx, p, bc.Category)
		if err != nil {
			log.Warn("seed prospect failed", zap.String("place_id", p.ID), zap.Error(err))
			continue
		}
		if created {
			summary.ProspectsNew++
		} else {
			summary.ProspectsReused++
		}
		seeded++

		e.invite(ctx, log, bc.ID, prospect, &summary)
	}

	log.Info("escalation complete",
		zap.Int("discovered", summary.Discovered),
		zap.Int("prospects_new", summary.ProspectsNew),
		zap.Int("prospects_reused", summary.ProspectsReused),
		zap.Int("invitations_queued", summary.InvitationsQueued),
		zap.Int("invitations_skipped", summary.InvitationsSkipped),
		zap.Int("invitations_failed", summary.InvitationsFailed),
		zap.Int("lookup_failures", summary.LookupFailures),
	)
	return summary, nil
}

// lookup runs one rate-limited directory search around the job site.
func (e *Escalator) lookup(ctx context.Context, center model.LatLng, keyword string) ([]places.Place, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "outreach: rate limit wait")
	}

	radiusMiles := e.placesCfg.RadiusMeters / metersPerMile
	if radiusMiles <= 0 {
		radiusMiles = 25
	}
	box := geo.BoundingBox(center, radiusMiles)

	lctx := ctx
	if e.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()
	}

	resp, err := e.directory.KeywordSearch(lctx, places.KeywordSearchRequest{
		TextQuery:      keyword,
		MaxResultCount: e.placesCfg.MaxResults,
		LocationRestriction: &places.LocationRect{
			Rectangle: places.Rectangle{
				Low:  places.LatLng{Latitude: box.MinLat, Longitude: box.MinLng},
				High: places.LatLng{Latitude: box.MaxLat, Longitude: box.MaxLng},
			},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "outreach: keyword search %q", keyword)
	}
	return resp.Places, nil
}

// seedProspect dedupes a discovered place against the prospect store by
// place_id, then phone, then email. An existing row is refreshed; a
// unique-violation race resolves to the reuse path.
func (e *Escalator) seedProspect(ctx context.Context, p places.Place, category model.Category) (*model.Prospect, bool, error) {
	phone := NormalizePhone(p.NationalPhoneNumber)

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, false, eris.Wrap(err, "outreach: marshal place payload")
	}

	existing, err := e.store.FindProspect(ctx, p.ID, phone, "")
	if err != nil {
		return nil, false, eris.Wrap(err, "outreach: find prospect")
	}
	if existing != nil {
		e.refresh(ctx, existing, raw, phone, p.WebsiteURI)
		return existing, false, nil
	}

	prospect := prospectFromPlace(p, category, phone, raw)
	if err := e.store.CreateProspect(ctx, prospect); err != nil {
		if store.IsUniqueViolation(err) {
			existing, ferr := e.store.FindProspect(ctx, p.ID, phone, "")
			if ferr == nil && existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, eris.Wrap(err, "outreach: create prospect")
	}
	return prospect, true, nil
}

// refresh updates an existing prospect's raw payload and fills any missing
// contact fields. Failures are logged; the reuse path continues regardless.
func (e *Escalator) refresh(ctx context.Context, existing *model.Prospect, raw json.RawMessage, phone, website string) {
	upd := &model.Prospect{ID: existing.ID, Raw: raw}
	if phone != "" {
		upd.Phone = &phone
	}
	if website != "" {
		upd.Website = &website
	}
	if err := e.store.RefreshProspect(ctx, upd); err != nil {
		zap.L().Warn("refresh prospect failed", zap.String("prospect_id", existing.ID), zap.Error(err))
		return
	}
	if existing.Phone == nil && upd.Phone != nil {
		existing.Phone = upd.Phone
	}
	if existing.Website == nil && upd.Website != nil {
		existing.Website = upd.Website
	}
}

// invite queues one invitation for the prospect on its preferred channel.
// A prospect with no contact method gets an immediately-failed invitation
// on the internal channel so the gap is visible to operators.
func (e *Escalator) invite(ctx context.Context, log *zap.Logger, bidCardID string, prospect *model.Prospect, summary *model.EscalationSummary) {
	inv := &model.Invitation{
		BidCardID:  bidCardID,
		ProspectID: &prospect.ID,
	}
	switch {
	case prospect.Phone != nil && *prospect.Phone != "":
		inv.Channel = model.ChannelSMS
		inv.Status = model.InviteQueued
	case prospect.Email != nil && *prospect.Email != "":
		inv.Channel = model.ChannelEmail
		inv.Status = model.InviteQueued
	default:
		inv.Channel = model.ChannelInternal
		inv.Status = model.InviteFailed
		inv.Reason = "no contact method"
	}

	created, err := e.store.CreateInvitation(ctx, inv)
	switch {
	case err != nil:
		log.Warn("create invitation failed", zap.String("prospect_id", prospect.ID), zap.Error(err))
		summary.InvitationsFailed++
	case !created:
		summary.InvitationsSkipped++
	case inv.Status == model.InviteFailed:
		summary.InvitationsFailed++
	default:
		summary.InvitationsQueued++
	}
}

func prospectFromPlace(p places.Place, category model.Category, phone string, raw json.RawMessage) *model.Prospect {
	placeID := p.ID
	prospect := &model.Prospect{
		PlaceID:    &placeID,
		Name:       p.DisplayName.Text,
		Categories: []model.Category{category},
		Source:     "places",
		Raw:        raw,
	}
	if phone != "" {
		prospect.Phone = &phone
	}
	if p.WebsiteURI != "" {
		website := p.WebsiteURI
		prospect.Website = &website
	}
	if p.Location != nil {
		prospect.Location = &model.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	return prospect
}
