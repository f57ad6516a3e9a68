package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/scraper"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the poster-site session is not ready or the media
// server cannot be reached.
func Health(session *scraper.Manager, lib Library, store *Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := session.State()

		media := "connected"
		info, err := lib.ServerInfo(c.Request.Context())
		if err != nil {
			media = "disconnected"
		}

		status := "healthy"
		if state != scraper.StateReady || media != "connected" {
			status = "degraded"
		}

		resp := models.HealthResponse{
			Status:         status,
			Uptime:         time.Since(startTime).Round(time.Second).String(),
			SessionState:   state.String(),
			BrowserActive:  session.BrowserActive(),
			MediaServer:    media,
			ActiveSessions: store.Len(),
			Version:        Version,
		}
		if err == nil {
			resp.ServerName = info.Name
			resp.ServerVersion = info.Version
		}
		c.JSON(http.StatusOK, resp)
	}
}
