package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
	"github.com/use-agent/posterbridge/pipeline"
)

// AutoPoster returns a handler for POST /api/v1/batch/auto-poster.
//
// The batch runs synchronously; the body may be empty, in which case
// the "no-poster" filter applies.
func AutoPoster(p *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AutoPosterRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, models.ErrCodeInvalidInput, err.Error())
			return
		}
		req.Defaults()

		report := p.AutoPoster(c.Request.Context(), req.Filter)
		status := http.StatusOK
		if report.Error != nil {
			status = mapErrorToStatus(&models.PipelineError{Code: report.Error.Code})
		}
		c.JSON(status, report)
	}
}
