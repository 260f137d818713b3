package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/pool"
	"github.com/use-agent/domainrank/scheduler"
)

// Health returns a handler for GET /api/v1/health. The status flips to
// "degraded" when the scheduler's restart signal is up; a supervisor
// watching this endpoint should recycle the process.
func Health(sched *scheduler.Scheduler, p *pool.SessionPool, startTime time.Time, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		needsRestart := sched.NeedsRestart()
		if needsRestart {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			PoolStats:    p.Stats(),
			Scheduler:    sched.Status(),
			NeedsRestart: needsRestart,
			Version:      version,
		})
	}
}
