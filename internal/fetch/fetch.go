package fetch

import (
	"context"
	"io"
)

// Fetcher is the download surface the roster sources depend on, so
// tests can swap the HTTP transport out.
type Fetcher interface {
	// Download fetches the URL, handing the body back for streaming.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path, returning bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// HeadETag returns the ETag header from a HEAD request.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only when the ETag no longer
	// matches. An unchanged resource yields a nil body and changed false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
