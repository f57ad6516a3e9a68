package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/posterbridge/api/handler"
	"github.com/use-agent/posterbridge/api/middleware"
	"github.com/use-agent/posterbridge/config"
	"github.com/use-agent/posterbridge/pipeline"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so monitoring checks always work.
// ctx bounds the background goroutines the middleware starts.
func NewRouter(ctx context.Context, p *pipeline.Pipeline, lib handler.Library, store *handler.Store, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(p.Session, lib, store, startTime))

	// Protected group: auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKey))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	// Library browsing
	protected.GET("/items", handler.Items(lib, store))
	protected.GET("/items/:id/posters", handler.Posters(p, store))
	protected.POST("/items/:id/select", handler.Select(store))

	// Uploads
	protected.POST("/items/:id/upload", handler.Upload(p, store))
	protected.POST("/upload-all", handler.UploadAll(p, store))
	protected.POST("/upload-poster", handler.UploadPoster(p))

	// Batch
	protected.POST("/batch/auto-poster", handler.AutoPoster(p))

	// Image proxies
	protected.GET("/thumbnail", handler.Thumbnail(p.Images))
	protected.GET("/jellyfin-image", handler.JellyfinImage(lib))

	return r
}
