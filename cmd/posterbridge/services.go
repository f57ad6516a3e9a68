package main

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/posterbridge/config"
	"github.com/use-agent/posterbridge/scraper"
	"github.com/use-agent/posterbridge/tmdb"
	"github.com/use-agent/posterbridge/tpdb"
	"github.com/use-agent/posterbridge/transfer"
)

func newSession(cfg *config.Config) *scraper.Manager {
	creds := scraper.Credentials{
		LoginURL: cfg.TPDB.BaseURL + "/login",
		Email:    cfg.TPDB.Email,
		Password: cfg.TPDB.Password,
	}
	return scraper.NewManager(scraper.NewRodDriverFactory(cfg.Browser), creds, cfg.Browser.ReadyTimeout.Duration)
}

// newResolver returns a resolver backed by TMDB, or one that always
// skips when no API key is configured.
func newResolver(cfg *config.Config) (*tmdb.Resolver, error) {
	if cfg.TMDB.APIKey == "" {
		slog.Info("no TMDB api key configured, searching by local titles")
		return tmdb.NewResolver(nil), nil
	}
	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithTimeout(cfg.TMDB.Timeout.Duration))
	if err != nil {
		return nil, fmt.Errorf("tmdb client: %w", err)
	}
	return tmdb.NewResolver(client), nil
}

// newPosterSite returns the poster-site client. previews may be nil to
// skip inline previews.
func newPosterSite(cfg *config.Config, previews *transfer.Fetcher) *tpdb.Client {
	if previews == nil {
		return tpdb.NewClient(cfg.TPDB.BaseURL, cfg.TPDB.SearchURLTemplate, nil, cfg.Posters.PreviewConcurrency)
	}
	return tpdb.NewClient(cfg.TPDB.BaseURL, cfg.TPDB.SearchURLTemplate, previews, cfg.Posters.PreviewConcurrency)
}
