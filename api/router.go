package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/domainrank/api/handler"
	"github.com/use-agent/domainrank/api/middleware"
	"github.com/use-agent/domainrank/config"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/scheduler"
	"github.com/use-agent/domainrank/store"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sched *scheduler.Scheduler, p *pool.SessionPool, st *store.TaskStore, cfg *config.Config, startTime time.Time, version string) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sched, p, startTime, version))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Submission
	protected.POST("/scrape", handler.Scrape(sched))
	protected.POST("/batch", handler.Batch(sched))

	// Inspection
	protected.GET("/result/:id", handler.Result(sched, st))
	protected.GET("/jobs", handler.Jobs(sched, st))
	protected.GET("/queue", handler.Queue(sched))

	return r
}
