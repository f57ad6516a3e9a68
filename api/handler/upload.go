package handler

import (
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/pipeline"
)

// Upload returns a handler for POST /api/v1/items/:id/upload.
//
// It uploads the poster previously selected for the item.
func Upload(p *pipeline.Pipeline, store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := p.Session.WaitReady(ctx, p.ReadyTimeout); err != nil {
			respondUpload(c, false, err)
			return
		}

		id, ok := sessionID(c, false)
		if !ok {
			badRequest(c, models.ErrCodeNoSession, "no browsing session: list items first")
			return
		}
		itemID := c.Param("id")
		posterURL, ok := store.Selection(id, itemID)
		if !ok {
			badRequest(c, models.ErrCodeInvalidInput, "no poster selected for this item")
			return
		}

		skipped, err := p.Upload(ctx, itemID, posterURL)
		respondUpload(c, skipped, err)
	}
}

// UploadPoster returns a handler for POST /api/v1/upload-poster, which
// uploads an explicit poster URL without a browsing session.
func UploadPoster(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DirectUploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, models.ErrCodeInvalidInput, err.Error())
			return
		}

		ctx := c.Request.Context()
		if err := p.Session.WaitReady(ctx, p.ReadyTimeout); err != nil {
			respondUpload(c, false, err)
			return
		}

		skipped, err := p.Upload(ctx, req.ItemID, req.PosterURL)
		respondUpload(c, skipped, err)
	}
}

// UploadAll returns a handler for POST /api/v1/upload-all.
//
// Every selection of the browsing session is uploaded in item id order.
// One failing item does not stop the others.
func UploadAll(p *pipeline.Pipeline, store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := p.Session.WaitReady(ctx, p.ReadyTimeout); err != nil {
			respondError(c, err)
			return
		}

		id, ok := sessionID(c, false)
		if !ok {
			badRequest(c, models.ErrCodeNoSession, "no browsing session: list items first")
			return
		}
		selections, ok := store.Selections(id)
		if !ok {
			badRequest(c, models.ErrCodeNoSession, "browsing session expired: list items again")
			return
		}

		results := make([]models.ItemResult, 0, len(selections))
		for _, itemID := range slices.Sorted(maps.Keys(selections)) {
			res := models.ItemResult{
				ItemID:    itemID,
				ItemTitle: store.title(id, itemID),
				PosterURL: selections[itemID],
			}
			skipped, err := p.Upload(ctx, itemID, res.PosterURL)
			if err != nil {
				slog.Warn("upload failed", "item", itemID, "error", err)
				res.Error = models.AsPipelineError(err).Message
			} else {
				res.Success = true
				res.Skipped = skipped
			}
			results = append(results, res)
		}

		c.JSON(http.StatusOK, models.UploadAllResponse{Results: results})
	}
}

func respondUpload(c *gin.Context, skipped bool, err error) {
	if err != nil {
		pe := models.AsPipelineError(err)
		c.JSON(mapErrorToStatus(pe), models.UploadResponse{
			Success: false,
			Message: pe.Message,
			Error:   pe.ToDetail(),
		})
		return
	}
	msg := "poster uploaded"
	if skipped {
		msg = "poster already current"
	}
	c.JSON(http.StatusOK, models.UploadResponse{
		Success: true,
		Skipped: skipped,
		Message: msg,
	})
}
