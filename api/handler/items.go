package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
)

// Library is the media server as seen by the HTTP handlers.
type Library interface {
	ServerInfo(ctx context.Context) (models.ServerInfo, error)
	Items(ctx context.Context, filter, sort string) ([]models.LibraryItem, error)
	FetchImage(ctx context.Context, url string) ([]byte, string, error)
}

// Items returns a handler for GET /api/v1/items.
//
// The listing is remembered in the caller's browsing session so later
// poster lookups and selections can refer to items by id.
func Items(lib Library, store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.ItemsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, models.ErrCodeInvalidInput, err.Error())
			return
		}
		q.Defaults()

		ctx := c.Request.Context()
		info, err := lib.ServerInfo(ctx)
		if err != nil {
			slog.Warn("media server info unavailable", "error", err)
		}

		items, err := lib.Items(ctx, q.Type, q.Sort)
		if err != nil {
			pe := models.AsPipelineError(err)
			c.JSON(mapErrorToStatus(pe), models.ItemsResponse{
				Items:      []models.LibraryItem{},
				ServerInfo: info,
				Error:      pe.ToDetail(),
			})
			return
		}

		id, _ := sessionID(c, true)
		store.PutItems(id, items, info)

		c.JSON(http.StatusOK, models.ItemsResponse{
			Items:      items,
			ServerInfo: info,
			TotalCount: len(items),
		})
	}
}
