// Package report publishes outreach activity summaries to the ops Notion
// database, one page per day, refreshed in place on rerun.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/store"
	"github.com/homebid/match-cli/pkg/notion"
)

// Store defines the aggregation the reporter reads.
type Store interface {
	OutreachStats(ctx context.Context, since time.Time) (*store.OutreachStats, error)
}

// Reporter writes outreach summaries into a Notion database.
type Reporter struct {
	store  Store
	notion notion.Client
	dbID   string
}

// NewReporter creates a Reporter targeting the given Notion database.
func NewReporter(st Store, nc notion.Client, dbID string) *Reporter {
	return &Reporter{store: st, notion: nc, dbID: dbID}
}

// Daily pages are titled with this prefix plus an ISO date, which is
// also how Prune recognizes its own pages.
const reportTitlePrefix = "Outreach Report "

// Run aggregates prospect and invitation activity since the cutoff and
// writes it to a page titled after today's date. Running twice the same day
// updates the existing page instead of creating a sibling.
func (r *Reporter) Run(ctx context.Context, since time.Time) (*store.OutreachStats, error) {
	log := zap.L().With(zap.String("component", "report"))

	stats, err := r.store.OutreachStats(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "report: aggregate outreach stats")
	}

	title := reportTitlePrefix + time.Now().UTC().Format("2006-01-02")
	props := buildProperties(title, stats)

	page, err := notion.FindPageByTitle(ctx, r.notion, r.dbID, title)
	if err != nil {
		return stats, eris.Wrap(err, "report: find existing page")
	}

	if page != nil {
		if _, err := r.notion.UpdatePage(ctx, page.ID.String(), &notionapi.PageUpdateRequest{
			Properties: props,
		}); err != nil {
			return stats, eris.Wrap(err, "report: update page")
		}
		log.Info("report page refreshed",
			zap.String("title", title),
			zap.Int("prospects_new", stats.ProspectsNew),
		)
		return stats, nil
	}

	if _, err := r.notion.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(r.dbID),
		},
		Properties: props,
	}); err != nil {
		return stats, eris.Wrap(err, "report: create page")
	}
	log.Info("report page created",
		zap.String("title", title),
		zap.Int("prospects_new", stats.ProspectsNew),
	)
	return stats, nil
}

// Prune archives report pages dated before cutoff so the ops database
// stays scoped to recent activity. It returns the number of pages
// archived. Pages whose titles do not follow the daily naming
// convention are left alone.
func (r *Reporter) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	pages, err := notion.QueryAll(ctx, r.notion, r.dbID, nil)
	if err != nil {
		return 0, eris.Wrap(err, "report: list report pages")
	}

	archived := 0
	for _, page := range pages {
		day, ok := reportTitleDate(page)
		if !ok || !day.Before(cutoff) {
			continue
		}
		if err := notion.ArchivePage(ctx, r.notion, page.ID.String()); err != nil {
			return archived, eris.Wrapf(err, "report: prune page %s", page.ID)
		}
		archived++
	}
	if archived > 0 {
		zap.L().Info("archived old report pages",
			zap.Int("archived", archived),
			zap.Time("cutoff", cutoff),
		)
	}
	return archived, nil
}

// reportTitleDate parses the date out of an "Outreach Report YYYY-MM-DD"
// page title.
func reportTitleDate(page notionapi.Page) (time.Time, bool) {
	prop, ok := page.Properties["Name"]
	if !ok {
		return time.Time{}, false
	}
	tp, ok := prop.(*notionapi.TitleProperty)
	if !ok {
		return time.Time{}, false
	}
	title := plainText(tp.Title)
	if !strings.HasPrefix(title, reportTitlePrefix) {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", strings.TrimPrefix(title, reportTitlePrefix))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func buildProperties(title string, stats *store.OutreachStats) notionapi.Properties {
	sent := stats.InvitationsByStatus[string(model.InviteSent)]
	queued := stats.InvitationsByStatus[string(model.InviteQueued)]
	return notionapi.Properties{
		"Name":                    notion.Title(title),
		"Since":                   notion.Date(stats.Since),
		"New Prospects":           notion.Number(float64(stats.ProspectsNew)),
		"Invitations Sent":        notion.Number(float64(sent)),
		"Invitations Queued":      notion.Number(float64(queued)),
		"Prospects By Source":     notion.Text(formatCounts(stats.ProspectsBySource)),
		"Invitations By Status":   notion.Text(formatCounts(stats.InvitationsByStatus)),
		"Invitations By Category": notion.Text(formatCounts(stats.InvitationsByCategory)),
	}
}

// formatCounts renders a count map as a stable "key: n" list. Map iteration
// order would otherwise reshuffle the page text on every refresh.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %d", k, counts[k])
	}
	return strings.Join(parts, "; ")
}

// plainText concatenates the plain_text runs of a rich text value.
func plainText(rts []notionapi.RichText) string {
	var s string
	for _, rt := range rts {
		s += rt.PlainText
	}
	return s
}
