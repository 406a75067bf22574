package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/serpwalk/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// degradedBacklog is the queue length above which health reports degraded.
const degradedBacklog = 10

// Health returns a handler for GET /api/v1/health.
func Health(queue *JobQueue, authenticated func() bool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending := 0
		if queue != nil {
			pending = queue.Pending()
		}
		status := "healthy"
		if pending > degradedBacklog {
			status = "degraded"
		}
		authed := false
		if authenticated != nil {
			authed = authenticated()
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Authenticated: authed,
			QueuedJobs:    pending,
			Version:       Version,
		})
	}
}
