package embed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/text-embedding-004:embedContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))

		var body embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Content.Parts, 1)
		assert.Equal(t, "repair roof leak", body.Content.Parts[0].Text)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[0.1,0.2,0.3]}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "text-embedding-004", WithBaseURL(srv.URL))
	vec, err := client.EmbedText(context.Background(), "repair roof leak")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-004", client.Model())
}

func TestEmbedText_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "overloaded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "text-embedding-004", WithBaseURL(srv.URL))
	vec, err := client.EmbedText(context.Background(), "kitchen remodel")

	require.Error(t, err)
	assert.Nil(t, vec)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Contains(t, se.Error(), "status 503")
}

func TestEmbedText_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding":{"values":[]}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", "text-embedding-004", WithBaseURL(srv.URL))
	_, err := client.EmbedText(context.Background(), "fence install")

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.StatusCode)
	assert.Contains(t, se.Error(), "empty embedding")
}

func TestEmbedText_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", "text-embedding-004", WithBaseURL(srv.URL))
	_, err := client.EmbedText(ctx, "deck repair")

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Zero(t, se.StatusCode)
}
