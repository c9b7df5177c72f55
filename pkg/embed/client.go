// Package embed provides a client for the text embedding service used to
// vectorize bid cards and search queries.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ServiceError is returned for any embedding call failure. StatusCode is 0
// when the request never reached the service.
type ServiceError struct {
	Err        error
	StatusCode int
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("embedding service: status %d: %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("embedding service: %s", e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Client computes text embeddings.
type Client interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Option customizes a client built by NewClient.
type Option func(*geminiClient)

// WithBaseURL sends requests to a different endpoint.
func WithBaseURL(url string) Option {
	return func(c *geminiClient) {
		c.baseURL = url
	}
}

// WithHTTPClient replaces the default 30 second timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *geminiClient) {
		c.http = hc
	}
}

// WithLimiter throttles outbound requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *geminiClient) {
		c.limiter = l
	}
}

type geminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an embedding client for the given model.
func NewClient(apiKey, model string, opts ...Option) Client {
	c := &geminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *geminiClient) Model() string {
	return c.model
}

type embedRequest struct {
	Content embedContent `json:"content"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (c *geminiClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &ServiceError{Err: eris.Wrap(err, "rate limit wait")}
		}
	}

	raw, err := c.send(ctx, embedRequest{
		Content: embedContent{Parts: []embedPart{{Text: text}}},
	})
	if err != nil {
		return nil, err
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ServiceError{Err: eris.Wrap(err, "unmarshal response")}
	}
	if len(parsed.Embedding.Values) == 0 {
		return nil, &ServiceError{Err: eris.New("empty embedding in response")}
	}
	return parsed.Embedding.Values, nil
}

// send posts the embed request and returns the raw 200 body. Other
// statuses come back as a ServiceError carrying the status code.
func (c *geminiClient) send(ctx context.Context, payload embedRequest) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ServiceError{Err: eris.Wrap(err, "marshal request")}
	}

	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Err: eris.Wrap(err, "create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ServiceError{Err: eris.Wrap(err, "send request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Err: eris.Wrap(err, "read response")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Err: eris.Errorf("%s", raw), StatusCode: resp.StatusCode}
	}
	return raw, nil
}
