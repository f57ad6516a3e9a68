package models

// SelectRequest is the payload for POST /api/v1/items/:id/select.
type SelectRequest struct {
	// PosterURL is the candidate URL chosen by the user. Required.
	PosterURL string `json:"poster_url" binding:"required"`
}

// DirectUploadRequest is the payload for POST /api/v1/upload-poster.
type DirectUploadRequest struct {
	ItemID    string `json:"item_id" binding:"required"`
	PosterURL string `json:"poster_url" binding:"required"`
}

// AutoPosterRequest is the payload for POST /api/v1/batch/auto-poster.
type AutoPosterRequest struct {
	// Filter selects the items to process.
	// Allowed: "all", "no-poster" (default), "movies", "series".
	Filter string `json:"filter,omitempty" binding:"omitempty,oneof=all no-poster movies series"`
}

// Defaults applies default values to unset fields.
func (r *AutoPosterRequest) Defaults() {
	if r.Filter == "" {
		r.Filter = "no-poster"
	}
}

// ItemsQuery carries the query string of GET /api/v1/items.
type ItemsQuery struct {
	// Type is "movies", "series" or empty for both.
	Type string `form:"type" binding:"omitempty,oneof=movies series"`

	// Sort is "name" (default), "year" or "date_added".
	Sort string `form:"sort" binding:"omitempty,oneof=name year date_added"`
}

// Defaults applies default values to unset fields.
func (q *ItemsQuery) Defaults() {
	if q.Sort == "" {
		q.Sort = "name"
	}
}
