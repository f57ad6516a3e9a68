package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/webhook"
)

// Batch filters accepted by AutoPoster.
const (
	FilterAll      = "all"
	FilterNoPoster = "no-poster"
	FilterMovies   = "movies"
	FilterSeries   = "series"
)

// SelectItems returns the items a batch filter applies to. An unknown
// filter selects nothing.
func SelectItems(items []models.LibraryItem, filter string) []models.LibraryItem {
	var out []models.LibraryItem
	for _, it := range items {
		switch filter {
		case FilterAll:
		case FilterNoPoster:
			if it.HasPoster() {
				continue
			}
		case FilterMovies:
			if it.Type != models.KindMovie {
				continue
			}
		case FilterSeries:
			if it.Type != models.KindSeries {
				continue
			}
		default:
			continue
		}
		out = append(out, it)
	}
	return out
}

// AutoPoster uploads the first poster found for every item matching
// filter. The returned report is also sent as a batch.completed webhook
// event when a notifier is configured.
func (p *Pipeline) AutoPoster(ctx context.Context, filter string) *models.BatchReport {
	report := &models.BatchReport{
		ID:      uuid.NewString(),
		Filter:  filter,
		Results: []models.ItemResult{},
	}
	defer p.notify(report)

	slog.Info("starting batch auto-poster", "batch_id", report.ID, "filter", filter)

	if err := p.Session.Ensure(ctx); err != nil {
		slog.Error("browser session unavailable for batch", "batch_id", report.ID, "error", err)
		report.Error = models.AsPipelineError(err).ToDetail()
		report.Message = "failed to log in to the poster site"
		return report
	}

	items, err := p.Media.Items(ctx, "", "name")
	if err != nil {
		report.Error = models.AsPipelineError(err).ToDetail()
		report.Message = "failed to list media server items"
		return report
	}

	targets := SelectItems(items, filter)
	report.TotalItems = len(targets)
	report.Success = true
	if len(targets) == 0 {
		report.Message = "no items found matching the filter criteria"
		return report
	}

	for i := range targets {
		if ctx.Err() != nil {
			report.Message = fmt.Sprintf("batch canceled after %d of %d items", report.Processed, report.TotalItems)
			return report
		}
		item := &targets[i]
		slog.Info("processing batch item",
			"batch_id", report.ID,
			"index", i+1,
			"total", len(targets),
			"title", item.Title,
		)
		report.Record(p.autoPosterItem(ctx, item))
	}

	report.Message = fmt.Sprintf("batch completed: %d successful, %d failed", report.Successful, report.Failed)
	slog.Info("batch auto-poster finished",
		"batch_id", report.ID,
		"successful", report.Successful,
		"failed", report.Failed,
	)
	return report
}

func (p *Pipeline) autoPosterItem(ctx context.Context, item *models.LibraryItem) models.ItemResult {
	res := models.ItemResult{ItemID: item.ID, ItemTitle: item.Title}

	found, err := p.FindPosters(ctx, RequestForItem(item, 1))
	if err != nil {
		res.Error = models.AsPipelineError(err).Message
		return res
	}
	if len(found.Posters) == 0 {
		res.Error = "no posters found"
		return res
	}

	res.PosterURL = found.Posters[0].URL
	skipped, err := p.Upload(ctx, item.ID, res.PosterURL)
	if err != nil {
		res.Error = models.AsPipelineError(err).Message
		return res
	}
	res.Success = true
	res.Skipped = skipped
	return res
}

func (p *Pipeline) notify(report *models.BatchReport) {
	if p.Notifier == nil {
		return
	}
	p.Notifier.Notify(webhook.NewEvent(webhook.EventBatchCompleted, report.ID, report))
}
