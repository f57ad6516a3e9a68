package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/posterbridge/models"
	"github.com/ysmood/gson"
)

// Load navigates the session tab to url and returns the rendered HTML.
//
// Lifecycle:
//
//  1. Timeout guard   – hard deadline on navigation + render
//  2. Navigate        – triggers page load
//  3. Wait            – DOM stable (result lists are rendered client-side)
//  4. Extract         – page.HTML()
func (d *rodDriver) Load(ctx context.Context, url string) (string, error) {
	// ── 1. Timeout guard ──────────────────────────────────────────────
	if d.navTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.navTimeout)
		defer cancel()
	}
	p := d.page.Context(ctx)

	// ── 2. Navigate ───────────────────────────────────────────────────
	if err := p.Navigate(url); err != nil {
		return "", categorizeError(err, "navigation failed")
	}

	// ── 3. Wait strategy ──────────────────────────────────────────────
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"url", url,
			"error", stableErr,
		)
	}

	// ── 4. Extract rendered HTML ──────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return rawHTML, nil
}

// setExtraHeaders sends headers with every request the page makes.
func setExtraHeaders(page *rod.Page, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(headers),
	}).Call(page); err != nil {
		slog.Warn("failed to set extra headers", "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed PipelineErrors so the API
// layer can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) *models.PipelineError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewPipelineError(models.ErrCodeNavigation, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewPipelineError(models.ErrCodeNavigation, "request canceled", err)
	default:
		return models.NewPipelineError(models.ErrCodeNavigation, msg, err)
	}
}
