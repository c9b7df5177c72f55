// Package crm pushes discovered prospects into Salesforce as Leads so the
// sales team can work directory finds the same way as inbound signups.
package crm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/pkg/salesforce"
)

// defaultSyncLimit bounds how many prospects a single run pushes.
const defaultSyncLimit = 500

// Store defines the persistence operations the syncer needs.
type Store interface {
	ListUnsyncedProspects(ctx context.Context, limit int) ([]model.Prospect, error)
	MarkProspectsSynced(ctx context.Context, ids []string, syncedAt time.Time) error
}

// SyncStats summarizes one sync run.
type SyncStats struct {
	Listed   int `json:"listed"`
	Existing int `json:"existing"`
	Created  int `json:"created"`
	Failed   int `json:"failed"`
}

// Syncer mirrors unsynced prospects into Salesforce.
type Syncer struct {
	store Store
	sf    salesforce.Client
	limit int
}

// NewSyncer creates a Syncer. A non-positive limit falls back to the default.
func NewSyncer(store Store, sf salesforce.Client, limit int) *Syncer {
	if limit <= 0 {
		limit = defaultSyncLimit
	}
	return &Syncer{store: store, sf: sf, limit: limit}
}

// Run lists prospects never pushed to the CRM, dedupes them against Leads
// already in Salesforce by phone and email, inserts the rest, and stamps
// every reconciled prospect with crm_synced_at. Prospects matching an
// existing Lead are stamped without an insert, so reruns converge instead
// of piling up duplicates.
func (s *Syncer) Run(ctx context.Context) (*SyncStats, error) {
	log := zap.L().With(zap.String("component", "crm.syncer"))
	stats := &SyncStats{}

	prospects, err := s.store.ListUnsyncedProspects(ctx, s.limit)
	if err != nil {
		return stats, eris.Wrap(err, "crm: list unsynced prospects")
	}
	stats.Listed = len(prospects)
	if len(prospects) == 0 {
		log.Info("no prospects to sync")
		return stats, nil
	}

	phones, emails := contactLists(prospects)
	existing, err := salesforce.FindLeadsByContact(ctx, s.sf, phones, emails)
	if err != nil {
		return stats, eris.Wrap(err, "crm: dedupe against existing leads")
	}
	byPhone := make(map[string]string, len(existing))
	byEmail := make(map[string]string, len(existing))
	for _, l := range existing {
		if l.Phone != "" {
			byPhone[l.Phone] = l.ID
		}
		if l.Email != "" {
			byEmail[strings.ToLower(l.Email)] = l.ID
		}
	}

	var (
		records   []map[string]any
		insertIDs []string
		syncedIDs []string
	)
	for _, p := range prospects {
		if matchLead(p, byPhone, byEmail) != "" {
			stats.Existing++
			syncedIDs = append(syncedIDs, p.ID)
			continue
		}
		records = append(records, buildLeadRecord(p))
		insertIDs = append(insertIDs, p.ID)
	}

	results, insertErr := salesforce.BulkInsertLeads(ctx, s.sf, records)
	// results covers every batch that completed even when a later batch
	// errored, so successes are stamped before the error surfaces.
	for i, r := range results {
		if r.Success {
			stats.Created++
			syncedIDs = append(syncedIDs, insertIDs[i])
			continue
		}
		stats.Failed++
		log.Warn("lead insert rejected",
			zap.String("prospect_id", insertIDs[i]),
			zap.Strings("errors", r.Errors),
		)
	}

	if len(syncedIDs) > 0 {
		if err := s.store.MarkProspectsSynced(ctx, syncedIDs, time.Now().UTC()); err != nil {
			return stats, eris.Wrap(err, "crm: mark prospects synced")
		}
	}
	if insertErr != nil {
		return stats, eris.Wrap(insertErr, "crm: insert leads")
	}

	log.Info("crm sync complete",
		zap.Int("listed", stats.Listed),
		zap.Int("existing", stats.Existing),
		zap.Int("created", stats.Created),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// contactLists collects the distinct phones and emails across prospects for
// the dedupe query.
func contactLists(prospects []model.Prospect) (phones, emails []string) {
	seenPhone := make(map[string]bool)
	seenEmail := make(map[string]bool)
	for _, p := range prospects {
		if p.Phone != nil && *p.Phone != "" && !seenPhone[*p.Phone] {
			seenPhone[*p.Phone] = true
			phones = append(phones, *p.Phone)
		}
		if p.Email != nil && *p.Email != "" {
			e := strings.ToLower(*p.Email)
			if !seenEmail[e] {
				seenEmail[e] = true
				emails = append(emails, e)
			}
		}
	}
	return phones, emails
}

// matchLead returns the ID of an existing Lead sharing a phone or email with
// the prospect, or "" when none does.
func matchLead(p model.Prospect, byPhone, byEmail map[string]string) string {
	if p.Phone != nil {
		if id, ok := byPhone[*p.Phone]; ok {
			return id
		}
	}
	if p.Email != nil {
		if id, ok := byEmail[strings.ToLower(*p.Email)]; ok {
			return id
		}
	}
	return ""
}

// buildLeadRecord maps a prospect onto Lead fields. Salesforce requires
// LastName on every Lead; business prospects have no person name, so the
// business name fills both.
func buildLeadRecord(p model.Prospect) map[string]any {
	rec := map[string]any{
		"LastName":   p.Name,
		"Company":    p.Name,
		"LeadSource": p.Source,
	}
	if p.Phone != nil {
		rec["Phone"] = *p.Phone
	}
	if p.Email != nil {
		rec["Email"] = *p.Email
	}
	if p.Website != nil {
		rec["Website"] = *p.Website
	}
	if len(p.Categories) > 0 {
		names := make([]string, len(p.Categories))
		for i, c := range p.Categories {
			names[i] = string(c)
		}
		rec["Description"] = "Categories: " + strings.Join(names, ", ")
	}
	return rec
}
