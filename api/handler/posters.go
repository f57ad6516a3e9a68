package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/pipeline"
)

// Posters returns a handler for GET /api/v1/items/:id/posters.
//
// Optional query parameter "max" caps the number of candidates.
func Posters(p *pipeline.Pipeline, store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if err := p.Session.WaitReady(ctx, p.ReadyTimeout); err != nil {
			respondError(c, err)
			return
		}

		maxCount := 0
		if raw := c.Query("max"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				badRequest(c, models.ErrCodeInvalidInput, "max must be a positive integer")
				return
			}
			maxCount = n
		}

		item, ok := lookupItem(c, store)
		if !ok {
			return
		}

		res, err := p.FindPosters(ctx, pipeline.RequestForItem(&item, maxCount))
		if err != nil {
			respondError(c, err)
			return
		}

		cacheStatus := "miss"
		if res.CacheHit {
			cacheStatus = "hit"
		}
		c.JSON(http.StatusOK, models.PostersResponse{
			Item:        &item,
			Query:       res.Query,
			Posters:     res.Posters,
			CacheStatus: cacheStatus,
			Timing:      res.Timing,
		})
	}
}

// Select returns a handler for POST /api/v1/items/:id/select.
func Select(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SelectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, models.ErrCodeInvalidInput, err.Error())
			return
		}

		id, ok := sessionID(c, false)
		if !ok {
			badRequest(c, models.ErrCodeNoSession, "no browsing session: list items first")
			return
		}
		itemID := c.Param("id")
		found, listed := store.Select(id, itemID, req.PosterURL)
		if !found {
			badRequest(c, models.ErrCodeNoSession, "browsing session expired: list items again")
			return
		}
		if !listed {
			notFound(c)
			return
		}

		c.JSON(http.StatusOK, models.SelectResponse{
			Success:   true,
			ItemID:    itemID,
			PosterURL: req.PosterURL,
		})
	}
}

// lookupItem finds the :id item in the caller's browsing session, writing
// a 400 or 404 response when it is missing.
func lookupItem(c *gin.Context, store *Store) (models.LibraryItem, bool) {
	id, ok := sessionID(c, false)
	if !ok {
		badRequest(c, models.ErrCodeNoSession, "no browsing session: list items first")
		return models.LibraryItem{}, false
	}
	item, found, ok := store.Item(id, c.Param("id"))
	if !found {
		badRequest(c, models.ErrCodeNoSession, "browsing session expired: list items again")
		return models.LibraryItem{}, false
	}
	if !ok {
		notFound(c)
		return models.LibraryItem{}, false
	}
	return item, true
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeNotFound,
			Message: "item not found in the current listing",
		},
	})
}
