package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/lmstrack/api/handler"
	"github.com/use-agent/lmstrack/api/middleware"
	"github.com/use-agent/lmstrack/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if keys are configured) → RateLimit
//
// Health stays outside auth so monitoring probes always work. ctx bounds the
// rate limiter's background cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, runs handler.RunController, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(runs, startTime))

	protected := v1.Group("")
	if len(cfg.Server.APIKeys) > 0 {
		protected.Use(middleware.Auth(cfg.Server.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.Server.RequestsPerSecond, cfg.Server.Burst))

	// History
	protected.GET("/courses", handler.ListCourses(cfg.Store.DataFile))
	protected.GET("/courses/*title", handler.GetCourse(cfg.Store.DataFile))

	// Runs
	protected.POST("/runs", handler.PostRun(runs))
	protected.GET("/runs/last", handler.LastRun(runs))

	return r
}
