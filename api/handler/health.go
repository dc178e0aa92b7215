package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/lmstrack/models"
	"github.com/use-agent/lmstrack/pipeline"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// RunController starts runs and reports on them; *pipeline.Scheduler
// implements it.
type RunController interface {
	Trigger() (string, error)
	Running() (string, bool)
	Last() *pipeline.Summary
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the most recent run failed.
func Health(runs RunController, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, running := runs.Running()
		last := runs.Last()

		status := "healthy"
		if last != nil && last.Error != "" {
			status = "degraded"
		}

		resp := models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Running: running,
			Version: Version,
		}
		if last != nil {
			resp.LastRun = last
		}
		c.JSON(http.StatusOK, resp)
	}
}
