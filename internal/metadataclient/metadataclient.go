// Package metadataclient talks to the external content catalogue
// (TMDB-shaped) the recommendation core depends on for titles, credits
// and discovery, behind a circuit breaker so a degraded upstream degrades
// individual candidates instead of failing whole requests.
package metadataclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/moodreel/core/internal/apperr"
)

// Envelope is the {data, status_code, success} shape every call returns.
type Envelope struct {
	Data       map[string]interface{} `json:"data"`
	StatusCode int                     `json:"status_code"`
	Success    bool                    `json:"success"`
}

// Client is the metadata provider client.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
	log     *zap.Logger
}

// New builds a Client pointed at baseURL, authenticating with apiKey.
func New(baseURL, apiKey string, log *zap.Logger) *Client {
	h := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetQueryParam("api_key", apiKey)

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "metadata_client",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("metadata circuit breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{http: h, breaker: cb, baseURL: baseURL, log: log}
}

func (c *Client) call(ctx context.Context, method, path string, query map[string]string) (Envelope, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().SetContext(ctx)
		for k, v := range query {
			req.SetQueryParam(k, v)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return Envelope{}, err
		}
		if resp.StatusCode() >= 300 {
			return Envelope{StatusCode: resp.StatusCode(), Success: false, Data: map[string]interface{}{}}, nil
		}
		var body map[string]interface{}
		if err := resp.Unmarshal(&body); resp.Body() != nil && err != nil {
			return Envelope{}, err
		}
		return Envelope{Data: body, StatusCode: resp.StatusCode(), Success: true}, nil
	})
	if err != nil {
		return Envelope{}, apperr.Transient("metadata provider unavailable", err)
	}
	env, ok := result.(Envelope)
	if !ok {
		return Envelope{}, apperr.Fatal("unexpected metadata client result", nil)
	}
	return env, nil
}

// Popular fetches a page of the "popular" feed for movie|tv.
func (c *Client) Popular(ctx context.Context, contentType string, page int) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/%s/popular", contentType), map[string]string{
		"page": fmt.Sprint(page),
	})
}

// Details fetches full metadata for a single id.
func (c *Client) Details(ctx context.Context, contentType string, id int64) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/%s/%d", contentType, id), nil)
}

// Search runs a text query against the catalogue.
func (c *Client) Search(ctx context.Context, contentType, query string, page int) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/search/%s", contentType), map[string]string{
		"query": query,
		"page":  fmt.Sprint(page),
	})
}

// Credits fetches cast/crew for an id. Passthrough per spec §6.
func (c *Client) Credits(ctx context.Context, contentType string, id int64) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/%s/%d/credits", contentType, id), nil)
}

// Recommendations fetches the provider's own "similar" list. Passthrough.
func (c *Client) Recommendations(ctx context.Context, contentType string, id int64) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/%s/%d/recommendations", contentType, id), nil)
}

// WatchProviders fetches where-to-watch data for an id. Passthrough.
func (c *Client) WatchProviders(ctx context.Context, contentType string, id int64) (Envelope, error) {
	return c.call(ctx, "GET", fmt.Sprintf("/%s/%d/watch/providers", contentType, id), nil)
}

// DiscoverFilters carries the named discover() filter keys from spec §6.
type DiscoverFilters struct {
	WithGenres             string
	PrimaryReleaseYear     string
	FirstAirDateYear       string
	PrimaryReleaseDateGTE  string
	FirstAirDateGTE        string
	VoteAverageGTE         string
	SortBy                 string
}

// StringField reads a string field out of a details payload, falling back
// to fallback when the key is absent, empty, or holds another type — e.g.
// a tv payload's "name" instead of a movie's "title".
func StringField(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// FloatField reads a numeric field out of a details payload (JSON numbers
// decode to float64), falling back when absent or of another type.
func FloatField(data map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := data[key].(float64); ok {
		return v
	}
	return fallback
}

// Discover runs a filtered catalogue query.
func (c *Client) Discover(ctx context.Context, contentType string, page int, f DiscoverFilters) (Envelope, error) {
	q := map[string]string{"page": fmt.Sprint(page)}
	if f.WithGenres != "" {
		q["with_genres"] = f.WithGenres
	}
	if f.PrimaryReleaseYear != "" {
		q["primary_release_year"] = f.PrimaryReleaseYear
	}
	if f.FirstAirDateYear != "" {
		q["first_air_date_year"] = f.FirstAirDateYear
	}
	if f.PrimaryReleaseDateGTE != "" {
		q["primary_release_date.gte"] = f.PrimaryReleaseDateGTE
	}
	if f.FirstAirDateGTE != "" {
		q["first_air_date.gte"] = f.FirstAirDateGTE
	}
	if f.VoteAverageGTE != "" {
		q["vote_average.gte"] = f.VoteAverageGTE
	}
	if f.SortBy != "" {
		q["sort_by"] = f.SortBy
	}
	return c.call(ctx, "GET", fmt.Sprintf("/discover/%s", contentType), q)
}
