package models

// ItemResult is the outcome for one item in a multi-item upload.
type ItemResult struct {
	ItemID    string `json:"item_id"`
	ItemTitle string `json:"item_title,omitempty"`
	Success   bool   `json:"success"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
	PosterURL string `json:"poster_url,omitempty"`
}

// UploadAllResponse is the response for POST /api/v1/upload-all.
type UploadAllResponse struct {
	Results []ItemResult `json:"results"`
}

// BatchReport is the response for POST /api/v1/batch/auto-poster and the
// payload of the batch.completed webhook event.
type BatchReport struct {
	ID         string       `json:"id"`
	Success    bool         `json:"success"`
	Filter     string       `json:"filter"`
	Message    string       `json:"message,omitempty"`
	Results    []ItemResult `json:"results"`
	TotalItems int          `json:"total_items"`
	Processed  int          `json:"processed"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// Record appends a result and updates the counters.
func (r *BatchReport) Record(res ItemResult) {
	r.Results = append(r.Results, res)
	r.Processed = len(r.Results)
	if res.Success {
		r.Successful++
	} else {
		r.Failed++
	}
}
