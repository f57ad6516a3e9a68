package models

// MediaKind is the media server's item type for a title.
type MediaKind string

const (
	KindMovie  MediaKind = "Movie"
	KindSeries MediaKind = "Series"
)

// TMDBType returns the metadata API path segment ("movie" or "tv"),
// or "" when the kind has no counterpart.
func (k MediaKind) TMDBType() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindSeries:
		return "tv"
	default:
		return ""
	}
}

// Section returns the poster site's search section filter ("movies" or
// "shows"), or "" for no filter.
func (k MediaKind) Section() string {
	switch k {
	case KindMovie:
		return "movies"
	case KindSeries:
		return "shows"
	default:
		return ""
	}
}

// LibraryItem is a movie or series listed from the media server.
type LibraryItem struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Year         int               `json:"year,omitempty"`
	Type         MediaKind         `json:"type"`
	ThumbnailURL string            `json:"thumbnail_url,omitempty"`
	DateCreated  string            `json:"date_created,omitempty"`
	ProviderIDs  map[string]string `json:"provider_ids,omitempty"`
}

// TMDBID returns the item's TMDB provider id, if any.
func (i *LibraryItem) TMDBID() string {
	if i.ProviderIDs == nil {
		return ""
	}
	return i.ProviderIDs["Tmdb"]
}

// HasPoster reports whether the item already carries a primary image.
func (i *LibraryItem) HasPoster() bool {
	return i.ThumbnailURL != ""
}

// ServerInfo identifies the connected media server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	ID      string `json:"id"`
}
