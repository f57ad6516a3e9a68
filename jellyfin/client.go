// Package jellyfin talks to the media server that owns the library and its
// primary images.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/posterbridge/models"
)

// ErrNoImage is returned when an item has no primary image.
var ErrNoImage = errors.New("jellyfin: item has no primary image")

const (
	defaultServerName = "Jellyfin Server"
	itemFields        = "Id,Name,ProductionYear,Path,ImageTags,ProviderIds,DateCreated,Type"
	maxImageBytes     = 25 << 20
)

// Client is a minimal Jellyfin REST client authenticated with an API key.
type Client struct {
	baseURL    string
	apiKey     string
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

// New creates a Jellyfin client.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("jellyfin url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("jellyfin api key required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server root.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)
	return req, nil
}

type systemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// ServerInfo returns the server's name and version. The error is also
// returned when the server is unreachable, alongside a placeholder name.
func (c *Client) ServerInfo(ctx context.Context) (models.ServerInfo, error) {
	info := models.ServerInfo{Name: defaultServerName}

	req, err := c.newRequest(ctx, http.MethodGet, "/System/Info", nil)
	if err != nil {
		return info, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info, fmt.Errorf("jellyfin system info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("jellyfin system info returned %d", resp.StatusCode)
	}

	var payload systemInfo
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return info, fmt.Errorf("decode system info: %w", err)
	}
	if payload.ServerName != "" {
		info.Name = payload.ServerName
	}
	info.Version = payload.Version
	info.ID = payload.ID
	return info, nil
}

type itemsPayload struct {
	Items []struct {
		ID             string            `json:"Id"`
		Name           string            `json:"Name"`
		ProductionYear int               `json:"ProductionYear"`
		Type           string            `json:"Type"`
		DateCreated    string            `json:"DateCreated"`
		ImageTags      map[string]string `json:"ImageTags"`
		ProviderIDs    map[string]string `json:"ProviderIds"`
	} `json:"Items"`
}

// itemTypes maps a list filter to Jellyfin item types.
func itemTypes(filter string) (string, error) {
	switch strings.ToLower(filter) {
	case "", "all":
		return "Movie,Series", nil
	case "movies":
		return "Movie", nil
	case "series":
		return "Series", nil
	default:
		return "", fmt.Errorf("unknown item type %q", filter)
	}
}

// sortParams maps a sort key to Jellyfin SortBy and SortOrder.
func sortParams(sort string) (string, string) {
	switch strings.ToLower(sort) {
	case "year":
		return "ProductionYear,SortName", "Ascending"
	case "date_added":
		return "DateCreated", "Descending"
	default:
		return "SortName", "Ascending"
	}
}

// Items lists movies and series. filter is "movies", "series" or "" for
// both; sort is "name", "year" or "date_added".
func (c *Client) Items(ctx context.Context, filter, sort string) ([]models.LibraryItem, error) {
	types, err := itemTypes(filter)
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeInvalidInput, err.Error(), nil)
	}
	sortBy, sortOrder := sortParams(sort)

	params := url.Values{}
	params.Set("IncludeItemTypes", types)
	params.Set("Recursive", "true")
	params.Set("Fields", itemFields)
	params.Set("SortBy", sortBy)
	params.Set("SortOrder", sortOrder)

	req, err := c.newRequest(ctx, http.MethodGet, "/Items?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mediaServerError("list items", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, mediaServerError(fmt.Sprintf("list items returned %d", resp.StatusCode), nil)
	}

	var payload itemsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, mediaServerError("decode items", err)
	}

	items := make([]models.LibraryItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		kind := models.KindSeries
		if it.Type == "Movie" {
			kind = models.KindMovie
		}
		item := models.LibraryItem{
			ID:          it.ID,
			Title:       it.Name,
			Year:        it.ProductionYear,
			Type:        kind,
			DateCreated: it.DateCreated,
			ProviderIDs: it.ProviderIDs,
		}
		if tag := it.ImageTags["Primary"]; tag != "" {
			item.ThumbnailURL = c.ThumbnailURL(it.ID, tag)
		}
		items = append(items, item)
	}
	return items, nil
}

// ThumbnailURL is the resized primary image URL for an item.
func (c *Client) ThumbnailURL(itemID, tag string) string {
	return fmt.Sprintf("%s/Items/%s/Images/Primary?maxWidth=300&quality=85&tag=%s",
		c.baseURL, url.PathEscape(itemID), url.QueryEscape(tag))
}

func primaryImagePath(itemID string) string {
	return "/Items/" + url.PathEscape(itemID) + "/Images/Primary/0"
}

// PrimaryImage returns the item's current primary image bytes, or
// ErrNoImage when it has none.
func (c *Client) PrimaryImage(ctx context.Context, itemID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, primaryImagePath(itemID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mediaServerError("fetch primary image", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoImage
	case resp.StatusCode != http.StatusOK:
		return nil, mediaServerError(fmt.Sprintf("fetch primary image returned %d", resp.StatusCode), nil)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

// UploadPrimaryImage replaces the item's primary image. Jellyfin expects
// the body base64-encoded with the image's own content type.
func (c *Client) UploadPrimaryImage(ctx context.Context, itemID string, data []byte, contentType string) error {
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(encoded, data)

	req, err := c.newRequest(ctx, http.MethodPost, primaryImagePath(itemID), bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.NewPipelineError(models.ErrCodeUploadFailed, "upload primary image", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return models.NewPipelineError(models.ErrCodeUploadFailed,
			fmt.Sprintf("upload primary image returned %d", resp.StatusCode), nil)
	}
	return nil
}

// FetchImage proxies an image URL on the server, such as a thumbnail,
// returning its bytes and content type. URLs outside the server are
// rejected so the proxy cannot be pointed elsewhere.
func (c *Client) FetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	if !strings.HasPrefix(rawURL, c.baseURL+"/") {
		return nil, "", models.NewPipelineError(models.ErrCodeInvalidInput, "url is not on the media server", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", models.NewPipelineError(models.ErrCodeInvalidInput, "invalid image url", err)
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", mediaServerError("fetch image", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", mediaServerError(fmt.Sprintf("fetch image returned %d", resp.StatusCode), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", mediaServerError("read image", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	return data, ct, nil
}

func mediaServerError(msg string, err error) *models.PipelineError {
	return models.NewPipelineError(models.ErrCodeMediaServer, "jellyfin: "+msg, err)
}
