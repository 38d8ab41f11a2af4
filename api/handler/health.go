package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sellerwatch/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports "degraded" when the last run failed as a whole.
func Health(runs RunTrigger, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		last := runs.LastRun()

		status := "healthy"
		if last != nil && last.Error != "" {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Running: runs.Running(),
			LastRun: last,
			Version: Version,
		})
	}
}
