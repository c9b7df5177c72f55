package main

import (
	"net/http"
	"os"
	"time"

	gosf "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/homebid/match-cli/pkg/embed"
	"github.com/homebid/match-cli/pkg/geocode"
	"github.com/homebid/match-cli/pkg/places"
	sfpkg "github.com/homebid/match-cli/pkg/salesforce"
)

// newEmbedClient builds the embedding client, or nil when no key is
// configured. Callers treat nil as "embeddings disabled".
func newEmbedClient() embed.Client {
	if cfg.Embedding.Key == "" {
		return nil
	}
	opts := []embed.Option{}
	if cfg.Embedding.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(cfg.Embedding.BaseURL))
	}
	if cfg.Embedding.TimeoutSecs > 0 {
		opts = append(opts, embed.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Embedding.TimeoutSecs) * time.Second,
		}))
	}
	if cfg.Embedding.RPS > 0 {
		opts = append(opts, embed.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Embedding.RPS), 1)))
	}
	return embed.NewClient(cfg.Embedding.Key, cfg.Embedding.Model, opts...)
}

// newPlacesClient builds the business directory client, or nil when no key
// is configured.
func newPlacesClient() places.Client {
	if cfg.Places.Key == "" {
		return nil
	}
	opts := []places.Option{}
	if cfg.Places.BaseURL != "" {
		opts = append(opts, places.WithBaseURL(cfg.Places.BaseURL))
	}
	if cfg.Places.RPS > 0 {
		opts = append(opts, places.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Places.RPS), 1)))
	}
	return places.NewClient(cfg.Places.Key, opts...)
}

// newGeocoder builds the census geocoder. No key is needed; the client is
// always available.
func newGeocoder() geocode.Client {
	opts := []geocode.Option{}
	if cfg.Geocode.BaseURL != "" {
		opts = append(opts, geocode.WithBaseURL(cfg.Geocode.BaseURL))
	}
	if cfg.Geocode.TimeoutSecs > 0 {
		opts = append(opts, geocode.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
		}))
	}
	if cfg.Geocode.RPS > 0 {
		opts = append(opts, geocode.WithRateLimit(cfg.Geocode.RPS))
	}
	return geocode.NewClient(opts...)
}

// initSalesforce authenticates against Salesforce with the configured JWT
// credentials.
func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (MATCH_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := gosf.Init(gosf.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RPS)), nil
}
