package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/posterbridge/models"
)

// respondError writes err as an ErrorResponse with the status matching its
// code. Errors without a code are reported as INTERNAL_ERROR.
func respondError(c *gin.Context, err error) {
	pe := models.AsPipelineError(err)
	c.JSON(mapErrorToStatus(pe), models.ErrorResponse{
		Success: false,
		Error:   pe.ToDetail(),
	})
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.PipelineError) int {
	switch e.Code {
	case models.ErrCodeNotReady, models.ErrCodeAuthFailed, models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNavigation, models.ErrCodeDownloadFailed,
		models.ErrCodeUploadFailed, models.ErrCodeMediaServer:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput, models.ErrCodeNoSession:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
