package models

// ItemsResponse is the response for GET /api/v1/items.
type ItemsResponse struct {
	Items      []LibraryItem `json:"items"`
	ServerInfo ServerInfo    `json:"server_info"`
	TotalCount int           `json:"total_count"`
	Error      *ErrorDetail  `json:"error,omitempty"`
}

// PostersResponse is the response for GET /api/v1/items/:id/posters.
type PostersResponse struct {
	Item    *LibraryItem      `json:"item,omitempty"`
	Query   string            `json:"query,omitempty"`
	Posters []PosterCandidate `json:"posters"`

	// CacheStatus is "hit" or "miss".
	CacheStatus string       `json:"cache_status,omitempty"`
	Timing      TimingInfo   `json:"timing"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// UploadResponse reports one download-and-upload attempt.
type UploadResponse struct {
	Success bool `json:"success"`

	// Skipped is true when the media server already holds identical bytes.
	Skipped bool         `json:"skipped,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ResolveMs is the time spent canonicalising the title.
	ResolveMs int64 `json:"resolve_ms"`

	// SearchMs is the time spent on the search page.
	SearchMs int64 `json:"search_ms"`

	// ExtractMs is the time spent on the detail page and previews.
	ExtractMs int64 `json:"extract_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status         string `json:"status"` // "healthy" or "degraded"
	Uptime         string `json:"uptime"`
	SessionState   string `json:"session_state"`
	BrowserActive  bool   `json:"browser_active"`
	MediaServer    string `json:"media_server"` // "connected" or "disconnected"
	ServerName     string `json:"server_name,omitempty"`
	ServerVersion  string `json:"server_version,omitempty"`
	ActiveSessions int    `json:"active_sessions"`
	Version        string `json:"version"`
}

// ErrorResponse is the body of every failed request that has no
// endpoint-specific envelope.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// SelectResponse acknowledges POST /api/v1/items/:id/select.
type SelectResponse struct {
	Success   bool   `json:"success"`
	ItemID    string `json:"item_id"`
	PosterURL string `json:"poster_url"`
}
