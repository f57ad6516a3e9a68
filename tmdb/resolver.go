package tmdb

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/posterbridge/metrics"
	"github.com/use-agent/posterbridge/models"
)

// Outcome says how a search title was produced.
type Outcome string

const (
	// OutcomeResolved means the official TMDB title was used.
	OutcomeResolved Outcome = "resolved"
	// OutcomeSkipped means no lookup was attempted.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFallback means the lookup failed and the local title was used.
	OutcomeFallback Outcome = "fallback"
)

// Resolution is the search title chosen for an item.
type Resolution struct {
	Query   string
	Outcome Outcome
	Err     error // set only for OutcomeFallback
}

// DetailsFetcher is implemented by *Client.
type DetailsFetcher interface {
	Details(ctx context.Context, mediaType, id string) (*Details, error)
}

var errNoTitle = errors.New("tmdb response has no title")

// Resolver turns a local title into the string searched on the poster site.
type Resolver struct {
	details DetailsFetcher
}

// NewResolver creates a Resolver. A nil fetcher makes every resolution
// a skip, which is how the service runs without a TMDB key.
func NewResolver(details DetailsFetcher) *Resolver {
	return &Resolver{details: details}
}

// ResolveSearchTitle returns "{official title} ({year})", or the official
// title alone when TMDB has no date, if externalID and a movie or series
// kind are present. Otherwise, or when the lookup fails in any way,
// the query is exactly localTitle.
//
// localYear is not used: the query's year only ever comes from TMDB.
func (r *Resolver) ResolveSearchTitle(ctx context.Context, localTitle string, localYear int, kind models.MediaKind, externalID string) Resolution {
	res := r.resolve(ctx, localTitle, kind, externalID)
	metrics.TitleResolutionsTotal.WithLabelValues(string(res.Outcome)).Inc()

	switch res.Outcome {
	case OutcomeResolved:
		slog.Info("using TMDB title for search", "local", localTitle, "query", res.Query)
	case OutcomeFallback:
		slog.Warn("TMDB lookup failed, using local title",
			"title", localTitle,
			"year", localYear,
			"kind", kind,
			"tmdb_id", externalID,
			"error", res.Err,
		)
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, localTitle string, kind models.MediaKind, externalID string) Resolution {
	mediaType := kind.TMDBType()
	if r == nil || r.details == nil || externalID == "" || mediaType == "" {
		return Resolution{Query: localTitle, Outcome: OutcomeSkipped}
	}

	details, err := r.details.Details(ctx, mediaType, externalID)
	if err != nil {
		return Resolution{Query: localTitle, Outcome: OutcomeFallback, Err: err}
	}
	title := details.OfficialTitle(mediaType)
	if title == "" {
		return Resolution{Query: localTitle, Outcome: OutcomeFallback, Err: errNoTitle}
	}
	year, err := details.Year(mediaType)
	if err != nil {
		return Resolution{Query: localTitle, Outcome: OutcomeFallback, Err: err}
	}
	if year != "" {
		return Resolution{Query: title + " (" + year + ")", Outcome: OutcomeResolved}
	}
	return Resolution{Query: title, Outcome: OutcomeResolved}
}
