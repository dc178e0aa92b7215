package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/lmstrack/models"
)

// respondError writes err as an APIResponse with a status derived from its code.
func respondError(c *gin.Context, err error) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	detail := scrapeErr.ToDetail()
	if detail.Message == "" {
		detail.Message = scrapeErr.Error()
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.APIResponse{
		Success: false,
		Error:   detail,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeBusy:
		return http.StatusConflict // 409
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
