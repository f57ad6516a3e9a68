package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Details is the subset of a TMDB movie or tv detail payload we use.
type Details struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

// OfficialTitle returns title for movies and name for tv shows.
func (d *Details) OfficialTitle(mediaType string) string {
	if mediaType == "tv" {
		return strings.TrimSpace(d.Name)
	}
	return strings.TrimSpace(d.Title)
}

// Year returns the four-digit year of the release (movie) or first air
// (tv) date. An absent date yields "" and a date that does not start with
// four digits is an error.
func (d *Details) Year(mediaType string) (string, error) {
	date := d.ReleaseDate
	if mediaType == "tv" {
		date = d.FirstAirDate
	}
	date = strings.TrimSpace(date)
	if date == "" {
		return "", nil
	}
	if len(date) < 4 {
		return "", fmt.Errorf("malformed tmdb date %q", date)
	}
	year := date[:4]
	for _, r := range year {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("malformed tmdb date %q", date)
		}
	}
	return year, nil
}

// Client calls the TMDB v3 API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Details fetches /{mediaType}/{id}. mediaType is "movie" or "tv".
func (c *Client) Details(ctx context.Context, mediaType, id string) (*Details, error) {
	if mediaType != "movie" && mediaType != "tv" {
		return nil, fmt.Errorf("unsupported tmdb media type %q", mediaType)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("tmdb id required")
	}

	endpoint, err := url.Parse(fmt.Sprintf("%s/%s/%s", c.baseURL, mediaType, url.PathEscape(id)))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb %s details returned %d (latency=%v)", mediaType, resp.StatusCode, latency)
	}

	var payload Details
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", mediaType, err)
	}
	return &payload, nil
}
