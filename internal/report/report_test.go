package report

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homebid/match-cli/internal/store"
)

type mockReportStore struct {
	stats *store.OutreachStats
	err   error
	since time.Time
}

func (m *mockReportStore) OutreachStats(_ context.Context, since time.Time) (*store.OutreachStats, error) {
	m.since = since
	return m.stats, m.err
}

type mockNotion struct {
	queryResp *notionapi.DatabaseQueryResponse
	queryErr  error

	created   []*notionapi.PageCreateRequest
	createErr error

	updatedIDs []string
	updated    []*notionapi.PageUpdateRequest
	updateErr  error
}

func (m *mockNotion) QueryDatabase(_ context.Context, _ string, _ *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.queryResp == nil {
		return &notionapi.DatabaseQueryResponse{}, nil
	}
	return m.queryResp, nil
}

func (m *mockNotion) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	m.created = append(m.created, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &notionapi.Page{}, nil
}

func (m *mockNotion) UpdatePage(_ context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	m.updatedIDs = append(m.updatedIDs, pageID)
	m.updated = append(m.updated, req)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &notionapi.Page{}, nil
}

func sampleStats(since time.Time) *store.OutreachStats {
	return &store.OutreachStats{
		Since:        since,
		ProspectsNew: 12,
		ProspectsBySource: map[string]int{
			"places":         7,
			"license_roster": 5,
		},
		InvitationsByStatus: map[string]int{
			"sent":   5,
			"queued": 2,
		},
		InvitationsByCategory: map[string]int{
			"repair": 4,
		},
	}
}

func TestReporter_Run_CreatesPage(t *testing.T) {
	since := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	st := &mockReportStore{stats: sampleStats(since)}
	nc := &mockNotion{}

	stats, err := NewReporter(st, nc, "db-ops").Run(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.ProspectsNew)
	assert.Equal(t, since, st.since)

	require.Len(t, nc.created, 1)
	assert.Empty(t, nc.updated)
	req := nc.created[0]
	assert.Equal(t, notionapi.ParentTypeDatabaseID, req.Parent.Type)
	assert.Equal(t, notionapi.DatabaseID("db-ops"), req.Parent.DatabaseID)

	title := req.Properties["Name"].(notionapi.TitleProperty)
	wantTitle := "Outreach Report " + time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, wantTitle, title.Title[0].Text.Content)

	num := req.Properties["New Prospects"].(notionapi.NumberProperty)
	assert.Equal(t, float64(12), num.Number)
	sent := req.Properties["Invitations Sent"].(notionapi.NumberProperty)
	assert.Equal(t, float64(5), sent.Number)

	src := req.Properties["Prospects By Source"].(notionapi.RichTextProperty)
	assert.Equal(t, "license_roster: 5; places: 7", src.RichText[0].Text.Content)
}

func TestReporter_Run_RefreshesExistingPage(t *testing.T) {
	since := time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC)
	st := &mockReportStore{stats: sampleStats(since)}
	nc := &mockNotion{
		queryResp: &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{{ID: notionapi.ObjectID("page-123")}},
		},
	}

	_, err := NewReporter(st, nc, "db-ops").Run(context.Background(), since)
	require.NoError(t, err)

	assert.Empty(t, nc.created, "a same-day rerun never creates a sibling page")
	require.Len(t, nc.updated, 1)
	assert.Equal(t, []string{"page-123"}, nc.updatedIDs)

	num := nc.updated[0].Properties["New Prospects"].(notionapi.NumberProperty)
	assert.Equal(t, float64(12), num.Number)
}

func TestReporter_Run_StatsError(t *testing.T) {
	st := &mockReportStore{err: eris.New("connection refused")}
	_, err := NewReporter(st, &mockNotion{}, "db-ops").Run(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate outreach stats")
}

func TestReporter_Run_FindError(t *testing.T) {
	since := time.Now().UTC()
	st := &mockReportStore{stats: sampleStats(since)}
	nc := &mockNotion{queryErr: eris.New("rate limited")}

	stats, err := NewReporter(st, nc, "db-ops").Run(context.Background(), since)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find existing page")
	assert.NotNil(t, stats, "stats survive a notion failure for the caller's summary")
}

func TestReporter_Run_CreateError(t *testing.T) {
	since := time.Now().UTC()
	st := &mockReportStore{stats: sampleStats(since)}
	nc := &mockNotion{createErr: eris.New("validation_error")}

	_, err := NewReporter(st, nc, "db-ops").Run(context.Background(), since)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create page")
}

func reportPage(id, title string) notionapi.Page {
	return notionapi.Page{
		ID: notionapi.ObjectID(id),
		Properties: notionapi.Properties{
			"Name": &notionapi.TitleProperty{
				Title: []notionapi.RichText{{PlainText: title}},
			},
		},
	}
}

func TestReporter_Prune_ArchivesOldPages(t *testing.T) {
	nc := &mockNotion{
		queryResp: &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				reportPage("p-old", "Outreach Report 2026-07-01"),
				reportPage("p-edge", "Outreach Report 2026-08-01"),
				reportPage("p-new", "Outreach Report 2026-08-20"),
				reportPage("p-manual", "Budget planning notes"),
			},
		},
	}

	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	n, err := NewReporter(&mockReportStore{}, nc, "db-ops").Prune(context.Background(), cutoff)
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"p-old"}, nc.updatedIDs, "pages dated on the cutoff stay")
	require.Len(t, nc.updated, 1)
	assert.True(t, nc.updated[0].Archived)
}

func TestReporter_Prune_QueryError(t *testing.T) {
	nc := &mockNotion{queryErr: eris.New("rate limited")}

	n, err := NewReporter(&mockReportStore{}, nc, "db-ops").Prune(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list report pages")
	assert.Zero(t, n)
}

func TestReporter_Prune_ArchiveError(t *testing.T) {
	nc := &mockNotion{
		queryResp: &notionapi.DatabaseQueryResponse{
			Results: []notionapi.Page{
				reportPage("p-old", "Outreach Report 2026-07-01"),
			},
		},
		updateErr: eris.New("validation_error"),
	}

	n, err := NewReporter(&mockReportStore{}, nc, "db-ops").
		Prune(context.Background(), time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune page")
	assert.Zero(t, n)
}

func TestReportTitleDate(t *testing.T) {
	day, ok := reportTitleDate(reportPage("p", "Outreach Report 2026-05-09"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC), day)

	for _, title := range []string{
		"Outreach Report",
		"Outreach Report yesterday",
		"Weekly sync",
		"",
	} {
		_, ok := reportTitleDate(reportPage("p", title))
		assert.False(t, ok, title)
	}

	_, ok = reportTitleDate(notionapi.Page{ID: "p-no-name"})
	assert.False(t, ok, "pages without a Name title are skipped")
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "none", formatCounts(nil))
	assert.Equal(t, "none", formatCounts(map[string]int{}))
	assert.Equal(t, "email: 2; sms: 5", formatCounts(map[string]int{"sms": 5, "email": 2}),
		"keys sort so reruns produce identical text")
}
