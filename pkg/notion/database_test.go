package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func pageBatch(hasMore bool, next string, ids ...string) *notionapi.DatabaseQueryResponse {
	resp := &notionapi.DatabaseQueryResponse{
		HasMore:    hasMore,
		NextCursor: notionapi.Cursor(next),
	}
	for _, id := range ids {
		resp.Results = append(resp.Results, notionapi.Page{ID: notionapi.ObjectID(id)})
	}
	return resp
}

func atCursor(cursor string) any {
	return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		return req.StartCursor == notionapi.Cursor(cursor)
	})
}

func TestQueryAll_SingleBatch(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", atCursor("")).
		Return(pageBatch(false, "", "rpt-jan", "rpt-feb"), nil).Once()

	pages, err := QueryAll(ctx, mc, "db-reports", nil)
	assert.NoError(t, err)
	assert.Len(t, pages, 2)
	mc.AssertExpectations(t)
}

func TestQueryAll_FollowsCursors(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", atCursor("")).
		Return(pageBatch(true, "c1", "rpt-1"), nil).Once()
	mc.On("QueryDatabase", ctx, "db-reports", atCursor("c1")).
		Return(pageBatch(true, "c2", "rpt-2"), nil).Once()
	mc.On("QueryDatabase", ctx, "db-reports", atCursor("c2")).
		Return(pageBatch(false, "", "rpt-3"), nil).Once()

	pages, err := QueryAll(ctx, mc, "db-reports", nil)
	assert.NoError(t, err)
	if assert.Len(t, pages, 3) {
		assert.Equal(t, notionapi.ObjectID("rpt-1"), pages[0].ID)
		assert.Equal(t, notionapi.ObjectID("rpt-2"), pages[1].ID)
		assert.Equal(t, notionapi.ObjectID("rpt-3"), pages[2].ID)
	}
	mc.AssertExpectations(t)
}

func TestQueryAll_CarriesFilterToEveryPage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	txOnly := func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		return ok &&
			pf.Property == "State" &&
			pf.RichText != nil &&
			pf.RichText.Equals == "TX" &&
			req.PageSize == 50
	}
	mc.On("QueryDatabase", ctx, "db-reports", mock.MatchedBy(txOnly)).
		Return(pageBatch(true, "c1", "rpt-tx-1"), nil).Once()
	mc.On("QueryDatabase", ctx, "db-reports", mock.MatchedBy(txOnly)).
		Return(pageBatch(false, "", "rpt-tx-2"), nil).Once()

	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "State",
			RichText: &notionapi.TextFilterCondition{Equals: "TX"},
		},
		PageSize: 50,
	}

	pages, err := QueryAll(ctx, mc, "db-reports", filter)
	assert.NoError(t, err)
	assert.Len(t, pages, 2)
	mc.AssertExpectations(t)
}

func TestQueryAll_PageError(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", mock.Anything).
		Return(nil, assert.AnError).Once()

	pages, err := QueryAll(ctx, mc, "db-reports", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: query all page")
	assert.Nil(t, pages)
	mc.AssertExpectations(t)
}

func TestQueryAll_CancelledBeforeFirstPage(t *testing.T) {
	mc := new(MockClient)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := QueryAll(ctx, mc, "db-reports", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Nil(t, pages)
}

func TestFindPageByTitle(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
		pf, ok := req.Filter.(notionapi.PropertyFilter)
		if !ok {
			return false
		}
		return pf.Property == "Name" &&
			pf.RichText != nil &&
			pf.RichText.Equals == "Outreach Report 2025-06-01" &&
			req.PageSize == 1
	})).Return(pageBatch(false, "", "report-1"), nil).Once()

	page, err := FindPageByTitle(ctx, mc, "db-reports", "Outreach Report 2025-06-01")
	assert.NoError(t, err)
	assert.NotNil(t, page)
	assert.Equal(t, notionapi.ObjectID("report-1"), page.ID)
	mc.AssertExpectations(t)
}

func TestFindPageByTitle_NotFound(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", mock.Anything).
		Return(pageBatch(false, ""), nil).Once()

	page, err := FindPageByTitle(ctx, mc, "db-reports", "Outreach Report 2099-01-01")
	assert.NoError(t, err)
	assert.Nil(t, page)
	mc.AssertExpectations(t)
}

func TestFindPageByTitle_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db-reports", mock.Anything).
		Return(nil, assert.AnError).Once()

	page, err := FindPageByTitle(ctx, mc, "db-reports", "Outreach Report 2025-06-01")
	assert.Error(t, err)
	assert.Nil(t, page)
	assert.Contains(t, err.Error(), "notion: find page by title")
	mc.AssertExpectations(t)
}

func TestArchivePage(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("UpdatePage", ctx, "rpt-old", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		return req.Archived && len(req.Properties) == 0
	})).Return(&notionapi.Page{ID: "rpt-old", Archived: true}, nil).Once()

	assert.NoError(t, ArchivePage(ctx, mc, "rpt-old"))
	mc.AssertExpectations(t)
}

func TestArchivePage_Error(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	mc.On("UpdatePage", ctx, "rpt-old", mock.Anything).
		Return(nil, assert.AnError).Once()

	err := ArchivePage(ctx, mc, "rpt-old")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion: archive page")
	mc.AssertExpectations(t)
}
