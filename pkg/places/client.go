// Package places provides a business directory client used to discover
// contractor prospects near a job site.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// keywordFieldMask trims responses to the fields the prospect importer
// consumes. The API bills by field group, so this list is deliberate.
const keywordFieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.nationalPhoneNumber,places.websiteUri,places.location,places.rating,places.types"

// Client performs directory search operations.
type Client interface {
	KeywordSearch(ctx context.Context, req KeywordSearchRequest) (*KeywordSearchResponse, error)
}

// LatLng is a coordinate pair in API wire format.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Rectangle is a lat/lng viewport.
type Rectangle struct {
	Low  LatLng `json:"low"`
	High LatLng `json:"high"`
}

// LocationRect restricts a search to a rectangular area.
type LocationRect struct {
	Rectangle Rectangle `json:"rectangle"`
}

// KeywordSearchRequest is a keyword query within an area.
type KeywordSearchRequest struct {
	TextQuery           string        `json:"textQuery"`
	PageToken           string        `json:"pageToken,omitempty"`
	MaxResultCount      int           `json:"maxResultCount,omitempty"`
	LocationRestriction *LocationRect `json:"locationRestriction,omitempty"`
}

// Place is one business returned by a keyword search.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber"`
	WebsiteURI          string      `json:"websiteUri"`
	Location            *LatLng     `json:"location,omitempty"`
	Rating              float64     `json:"rating"`
	Types               []string    `json:"types,omitempty"`
}

// DisplayName carries the localized business name.
type DisplayName struct {
	Text string `json:"text"`
}

// KeywordSearchResponse is the response from a keyword search.
type KeywordSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}

// Option adjusts client construction.
type Option func(*restClient)

// WithBaseURL points the client at an alternate endpoint, typically a
// test server.
func WithBaseURL(url string) Option {
	return func(c *restClient) {
		c.baseURL = url
	}
}

// WithHTTPClient swaps in a caller-owned http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *restClient) {
		c.http = hc
	}
}

// WithLimiter applies a client-side rate limit to all requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *restClient) {
		c.limiter = l
	}
}

type restClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a directory search client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &restClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *restClient) KeywordSearch(ctx context.Context, req KeywordSearchRequest) (*KeywordSearchResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "places: rate limit wait")
		}
	}

	var result KeywordSearchResponse
	if err := c.post(ctx, "/places:searchText", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post sends payload as JSON and decodes the 200 response into out. Any
// other status becomes an error carrying the response text.
func (c *restClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", keywordFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "places: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrap(err, "places: unmarshal response")
	}
	return nil
}
