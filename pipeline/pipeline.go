// Package pipeline ties the browser session, title resolver, poster site
// client and media server together into the operations the API exposes.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/posterbridge/cache"
	"github.com/use-agent/posterbridge/metrics"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/scraper"
	"github.com/use-agent/posterbridge/tmdb"
	"github.com/use-agent/posterbridge/tpdb"
	"github.com/use-agent/posterbridge/transfer"
	"github.com/use-agent/posterbridge/webhook"
)

// MediaServer is the subset of the Jellyfin client the pipeline needs.
type MediaServer interface {
	Items(ctx context.Context, filter, sort string) ([]models.LibraryItem, error)
	PrimaryImage(ctx context.Context, itemID string) ([]byte, error)
	UploadPrimaryImage(ctx context.Context, itemID string, data []byte, contentType string) error
}

// Deps are the collaborators of a Pipeline. Cache and Notifier may be nil.
type Deps struct {
	Session  *scraper.Manager
	Resolver *tmdb.Resolver
	Posters  *tpdb.Client
	Images   *transfer.Fetcher
	Media    MediaServer
	Cache    *cache.Cache[[]models.PosterCandidate]
	Notifier *webhook.Notifier

	// ReadyTimeout bounds the wait for the browser session.
	ReadyTimeout time.Duration
	// MaxPerItem is the candidate count used when a request gives none.
	MaxPerItem int
}

// Pipeline runs poster lookups and uploads.
type Pipeline struct {
	Deps
}

// New creates a Pipeline.
func New(deps Deps) *Pipeline {
	if deps.MaxPerItem <= 0 {
		deps.MaxPerItem = 18
	}
	return &Pipeline{Deps: deps}
}

// Request describes the title to find posters for.
type Request struct {
	Title      string
	Year       int
	Kind       models.MediaKind
	ExternalID string // TMDB id
	Max        int
}

// RequestForItem builds a Request from a library item.
func RequestForItem(item *models.LibraryItem, maxCount int) Request {
	return Request{
		Title:      item.Title,
		Year:       item.Year,
		Kind:       item.Type,
		ExternalID: item.TMDBID(),
		Max:        maxCount,
	}
}

// Result is the outcome of FindPosters. An empty Posters slice with a nil
// error means the site had nothing for the title.
type Result struct {
	Query      string
	Resolution tmdb.Outcome
	Posters    []models.PosterCandidate
	CacheHit   bool
	Timing     models.TimingInfo
}

// FindPosters resolves the search title, searches the poster site and
// extracts up to req.Max candidates. It fails with NOT_READY when the
// browser session does not become ready in time.
func (p *Pipeline) FindPosters(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveStage("pipeline", start)

	if req.Title == "" {
		return nil, models.NewPipelineError(models.ErrCodeInvalidInput, "title is required", nil)
	}
	maxCount := req.Max
	if maxCount <= 0 {
		maxCount = p.MaxPerItem
	}

	if err := p.Session.WaitReady(ctx, p.ReadyTimeout); err != nil {
		return nil, err
	}

	res := &Result{Posters: []models.PosterCandidate{}}

	resolveStart := time.Now()
	resolution := p.Resolver.ResolveSearchTitle(ctx, req.Title, req.Year, req.Kind, req.ExternalID)
	res.Query = resolution.Query
	res.Resolution = resolution.Outcome
	res.Timing.ResolveMs = time.Since(resolveStart).Milliseconds()

	key := cache.Key(res.Query, string(req.Kind), maxCount)
	if cached, ok := p.Cache.Get(key); ok {
		res.Posters = cached
		res.CacheHit = true
		res.Timing.TotalMs = time.Since(start).Milliseconds()
		return res, nil
	}

	lease, err := p.Session.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	searchStart := time.Now()
	detailURL, err := p.Posters.Search(ctx, lease, res.Query, req.Kind)
	res.Timing.SearchMs = time.Since(searchStart).Milliseconds()
	if err != nil {
		return nil, models.NewPipelineError(models.ErrCodeNavigation, "search canceled", err)
	}

	if detailURL != "" {
		extractStart := time.Now()
		posters, err := p.Posters.Posters(ctx, lease, detailURL, maxCount)
		res.Timing.ExtractMs = time.Since(extractStart).Milliseconds()
		if err != nil {
			return nil, models.NewPipelineError(models.ErrCodeNavigation, "extraction canceled", err)
		}
		if len(posters) > 0 {
			res.Posters = posters
			p.Cache.Set(key, posters)
		}
	}

	res.Timing.TotalMs = time.Since(start).Milliseconds()
	slog.Info("poster lookup finished",
		"title", req.Title,
		"query", res.Query,
		"resolution", res.Resolution,
		"posters", len(res.Posters),
		"total_ms", res.Timing.TotalMs,
	)
	return res, nil
}

// Upload downloads posterURL with the session's cookies and makes it the
// item's primary image. skipped is true when the media server already
// holds the same bytes.
func (p *Pipeline) Upload(ctx context.Context, itemID, posterURL string) (skipped bool, err error) {
	if itemID == "" || posterURL == "" {
		return false, models.NewPipelineError(models.ErrCodeInvalidInput, "item id and poster url are required", nil)
	}

	img, err := p.Images.Fetch(ctx, posterURL)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("download_failed").Inc()
		return false, err
	}

	current := func(ctx context.Context) ([]byte, error) {
		return p.Media.PrimaryImage(ctx, itemID)
	}
	if transfer.ImagesIdentical(ctx, current, img.Data) {
		metrics.UploadsTotal.WithLabelValues("skipped").Inc()
		slog.Info("poster already current, skipping upload", "item", itemID)
		return true, nil
	}

	if err := p.Media.UploadPrimaryImage(ctx, itemID, img.Data, img.ContentType); err != nil {
		metrics.UploadsTotal.WithLabelValues("upload_failed").Inc()
		var pe *models.PipelineError
		if !errors.As(err, &pe) {
			err = models.NewPipelineError(models.ErrCodeUploadFailed, "upload failed", err)
		}
		return false, err
	}

	metrics.UploadsTotal.WithLabelValues("uploaded").Inc()
	slog.Info("poster uploaded", "item", itemID, "url", posterURL, "bytes", len(img.Data))
	return false, nil
}
