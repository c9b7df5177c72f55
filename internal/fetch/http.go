package fetch

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	RateLimiters map[string]*rate.Limiter
}

// HTTPFetcher downloads roster files over HTTP with per-host rate
// limits and retry on transient failures.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	fixed    map[string]*rate.Limiter
	adaptive map[string]*AdaptiveLimiter
	fallback *rate.Limiter
}

// DefaultRateLimiters returns per-host limits for the known sources.
// Licensing boards get conservative limits; Census hosts tolerate more.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.cslb.ca.gov":    rate.NewLimiter(5, 5),
		"www.tdlr.texas.gov": rate.NewLimiter(5, 5),
		"www2.census.gov":    rate.NewLimiter(10, 10),
	}
}

// DefaultAdaptiveLimiters returns self-tuning limiters for the same hosts.
func DefaultAdaptiveLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		"www.cslb.ca.gov":    NewAdaptiveLimiter(5, 5),
		"www.tdlr.texas.gov": NewAdaptiveLimiter(5, 5),
		"www2.census.gov":    NewAdaptiveLimiter(10, 10),
	}
}

// NewHTTPFetcher creates an HTTPFetcher, filling in defaults for any
// zero option.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "match-cli/1.0"
	}
	fixed := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for host, lim := range opts.RateLimiters {
		fixed[host] = lim
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		fixed:    fixed,
		adaptive: DefaultAdaptiveLimiters(),
		fallback: rate.NewLimiter(20, 20),
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitTurn blocks on the host's limiter. It returns the host's adaptive
// limiter, if one exists, so the caller can feed back the outcome.
func (f *HTTPFetcher) waitTurn(ctx context.Context, rawURL string) (*AdaptiveLimiter, error) {
	host := hostOf(rawURL)
	if a, ok := f.adaptive[host]; ok {
		if err := a.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}
		return a, nil
	}
	lim, ok := f.fixed[host]
	if !ok {
		lim = f.fallback
	}
	if err := lim.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}
	return nil, nil
}

// do issues the request with retries on transport errors, 429s, and 5xx
// responses. Backoff happens at the top of each retry so the final
// failure returns without sleeping.
func (f *HTTPFetcher) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			f.sleep(ctx, attempt-1)
		}

		adaptive, err := f.waitTurn(ctx, req.URL.String())
		if err != nil {
			return nil, err
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			lastErr = err
			zap.L().Warn("http request failed, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http 429 from %s", req.URL.String())
			if adaptive != nil {
				adaptive.OnRateLimit()
			}
			zap.L().Warn("rate limited, backing off",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String())
			zap.L().Warn("server error, retrying",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		if adaptive != nil {
			adaptive.OnSuccess()
		}
		return resp, nil
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

// sleep waits out an exponential backoff step, doubling from one second
// and capping at thirty, with up to 50% jitter on top.
func (f *HTTPFetcher) sleep(ctx context.Context, exp int) {
	d := min(time.Second<<exp, 30*time.Second)
	d += rand.N(d / 2)

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (f *HTTPFetcher) newRequest(ctx context.Context, method, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	return req, nil
}

// Download fetches rawURL and returns the response body. The caller
// owns the body and must close it.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.do(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches rawURL into path and returns the bytes written.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, body)
	if err != nil {
		return n, eris.Wrap(err, "write file")
	}
	return n, nil
}

// HeadETag issues a HEAD request and returns the ETag header, empty
// when the host does not send one.
func (f *HTTPFetcher) HeadETag(ctx context.Context, rawURL string) (string, error) {
	req, err := f.newRequest(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	if _, err := f.waitTurn(ctx, rawURL); err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "head request")
	}
	defer resp.Body.Close() //nolint:errcheck

	return resp.Header.Get("ETag"), nil
}

// DownloadIfChanged fetches rawURL with an If-None-Match header. On a
// 304 it returns the previous etag, a nil body, and changed false.
func (f *HTTPFetcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	req, err := f.newRequest(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if _, err := f.waitTurn(ctx, rawURL); err != nil {
		return nil, "", false, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "download if changed")
	}
	switch {
	case resp.StatusCode == http.StatusNotModified:
		_ = resp.Body.Close()
		return nil, etag, false, nil
	case resp.StatusCode != http.StatusOK:
		_ = resp.Body.Close()
		return nil, "", false, eris.Errorf("download if changed: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, resp.Header.Get("ETag"), true, nil
}
