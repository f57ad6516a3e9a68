package tpdb

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/posterbridge/metrics"
	"github.com/use-agent/posterbridge/models"
	"golang.org/x/sync/errgroup"
)

// Loader renders a page in the browser session. *scraper.Lease satisfies it.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// Previewer turns an image URL into an inline data URL, or "" on failure.
// *transfer.Fetcher satisfies it.
type Previewer interface {
	Preview(ctx context.Context, url string) string
}

// Client searches the poster site and extracts poster candidates.
type Client struct {
	baseURL            string
	searchTemplate     string
	previews           Previewer
	previewConcurrency int
}

// NewClient creates a Client. previews may be nil, in which case
// candidates carry no inline preview.
func NewClient(baseURL, searchTemplate string, previews Previewer, previewConcurrency int) *Client {
	if previewConcurrency <= 0 {
		previewConcurrency = 1
	}
	return &Client{
		baseURL:            baseURL,
		searchTemplate:     searchTemplate,
		previews:           previews,
		previewConcurrency: previewConcurrency,
	}
}

// BaseURL returns the site base that relative links are resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Search runs query on the site and returns the detail page URL of the
// selected result. An empty URL with a nil error means nothing matched;
// a failed page load is logged and treated the same way. Only ctx
// cancellation is returned as an error.
func (c *Client) Search(ctx context.Context, page Loader, query string, kind models.MediaKind) (string, error) {
	start := time.Now()
	defer metrics.ObserveStage("search", start)

	searchURL := BuildSearchURL(c.searchTemplate, query, kind)
	slog.Info("searching poster site", "query", query, "url", searchURL)

	rawHTML, err := page.Load(ctx, searchURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		metrics.SearchesTotal.WithLabelValues("error").Inc()
		slog.Warn("search page failed to load", "query", query, "error", err)
		return "", nil
	}

	results := FindResultLinks(rawHTML)
	sel, ok := SelectResult(query, results)
	if !ok {
		metrics.SearchesTotal.WithLabelValues("no_results").Inc()
		slog.Info("no search results", "query", query)
		return "", nil
	}

	detailURL, ok := ResolveURL(c.baseURL, sel.Result.Href)
	if !ok {
		metrics.SearchesTotal.WithLabelValues("no_results").Inc()
		slog.Info("selected result has no usable link",
			"query", query,
			"title", sel.Result.Title,
			"href", sel.Result.Href,
		)
		return "", nil
	}

	outcome := "matched"
	if !sel.Matched {
		outcome = "first_result"
	}
	metrics.SearchesTotal.WithLabelValues(outcome).Inc()
	slog.Info("selected search result",
		"query", query,
		"title", sel.Result.Title,
		"score", sel.Score,
		"outcome", outcome,
		"results", len(results),
	)
	return detailURL, nil
}

// Posters loads detailURL and returns at most maxCount candidates in document
// order. Links that cannot be resolved are skipped. Previews are fetched
// concurrently; a failed preview leaves Base64 empty but keeps the
// candidate. A failed page load yields no candidates and a nil error
// unless ctx was cancelled.
func (c *Client) Posters(ctx context.Context, page Loader, detailURL string, maxCount int) ([]models.PosterCandidate, error) {
	start := time.Now()
	defer metrics.ObserveStage("extract", start)

	if maxCount <= 0 {
		return nil, nil
	}

	rawHTML, err := page.Load(ctx, detailURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("detail page failed to load", "url", detailURL, "error", err)
		return nil, nil
	}

	links := FindPosterLinks(rawHTML)
	if len(links) > maxCount {
		links = links[:maxCount]
	}

	candidates := make([]models.PosterCandidate, 0, len(links))
	for i, href := range links {
		posterURL, ok := ResolveURL(c.baseURL, href)
		if !ok {
			continue
		}
		candidates = append(candidates, models.NewPosterCandidate(i+1, posterURL, ""))
	}

	slog.Info("extracted poster links",
		"url", detailURL,
		"found", len(links),
		"candidates", len(candidates),
	)

	if c.previews != nil {
		c.fillPreviews(ctx, candidates)
	}
	return candidates, nil
}

func (c *Client) fillPreviews(ctx context.Context, candidates []models.PosterCandidate) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.previewConcurrency)
	for i := range candidates {
		g.Go(func() error {
			preview := c.previews.Preview(gctx, candidates[i].URL)
			if preview == "" {
				metrics.PreviewFailuresTotal.Inc()
			}
			candidates[i].Base64 = preview
			return nil
		})
	}
	_ = g.Wait()
}
