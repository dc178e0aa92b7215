package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/lmstrack/models"
)

// RunStarted is the response body of POST /api/v1/runs.
type RunStarted struct {
	RunID string `json:"run_id"`
}

// PostRun returns a handler for POST /api/v1/runs. It starts a scrape in the
// background and answers 202, or 409 if one is already running.
func PostRun(runs RunController) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := runs.Trigger()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, models.APIResponse{Success: true, Data: RunStarted{RunID: id}})
	}
}

// LastRun returns a handler for GET /api/v1/runs/last.
func LastRun(runs RunController) gin.HandlerFunc {
	return func(c *gin.Context) {
		last := runs.Last()
		if last == nil {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "no run has finished yet", nil))
			return
		}
		c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: last})
	}
}
