package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/transfer"
)

// proxyTimeout bounds one proxied image fetch.
const proxyTimeout = 10 * time.Second

const placeholderSVG = `<svg width="200" height="300" xmlns="http://www.w3.org/2000/svg">
  <rect width="100%" height="100%" fill="#f8f9fa" stroke="#dee2e6" stroke-width="2"/>
  <circle cx="100" cy="120" r="30" fill="#dee2e6"/>
  <rect x="70" y="180" width="60" height="8" fill="#dee2e6" rx="4"/>
  <rect x="80" y="200" width="40" height="6" fill="#dee2e6" rx="3"/>
  <text x="100" y="250" font-family="Arial" font-size="12" fill="#6c757d" text-anchor="middle">No Preview</text>
</svg>`

// ImageFetcher downloads poster-site images with the session cookies.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*transfer.Image, error)
}

// Thumbnail returns a handler for GET /api/v1/thumbnail?url=...
//
// Poster-site images need the session cookies, so the browser UI loads
// them through this proxy. Failures yield the placeholder image.
func Thumbnail(images ImageFetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if target == "" || target == "None" {
			writePlaceholder(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), proxyTimeout)
		defer cancel()
		img, err := images.Fetch(ctx, target)
		if err != nil {
			slog.Warn("thumbnail fetch failed", "url", target, "error", err)
			writePlaceholder(c)
			return
		}
		writeImage(c, target, img.Data, img.ContentType)
	}
}

// JellyfinImage returns a handler for GET /api/v1/jellyfin-image?url=...
//
// Media server images need the API key, which must not reach the browser.
func JellyfinImage(lib Library) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Query("url")
		if target == "" {
			writePlaceholder(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), proxyTimeout)
		defer cancel()
		data, contentType, err := lib.FetchImage(ctx, target)
		if err != nil {
			slog.Warn("media server image fetch failed", "url", target, "error", err)
			writePlaceholder(c)
			return
		}
		writeImage(c, target, data, contentType)
	}
}

func writeImage(c *gin.Context, source string, data []byte, contentType string) {
	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("ETag", strconv.Quote(transfer.ContentHash([]byte(source))))
	c.Data(http.StatusOK, contentType, data)
}

func writePlaceholder(c *gin.Context) {
	c.Data(http.StatusOK, "image/svg+xml", []byte(placeholderSVG))
}
