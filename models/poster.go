package models

// SearchResult is one result link read from the poster site's search page.
type SearchResult struct {
	Title string
	Href  string
}

// PosterCandidate is one retrievable image offered to the user.
//
// Title, Uploader and Likes are placeholders: the poster site's markup does
// not expose them reliably.
type PosterCandidate struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Base64   string `json:"base64,omitempty"`
	Title    string `json:"title"`
	Uploader string `json:"uploader"`
	Likes    int    `json:"likes"`
}

// NewPosterCandidate builds a candidate with the placeholder metadata.
func NewPosterCandidate(id int, url, preview string) PosterCandidate {
	return PosterCandidate{
		ID:       id,
		URL:      url,
		Base64:   preview,
		Title:    "Poster",
		Uploader: "Unknown",
		Likes:    0,
	}
}
