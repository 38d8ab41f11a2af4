package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sellerwatch/models"
)

// RunTrigger is the engine entry point as seen by the API.
type RunTrigger interface {
	ExecuteTasks(ctx context.Context) (*models.RunSummary, error)
	Running() bool
	LastRun() *models.RunSummary
}

// PostRun returns a handler for POST /api/v1/runs. The run executes in the
// background under base, so it outlives the request but not the server.
func PostRun(runs RunTrigger, base context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if runs.Running() {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRunActive,
					Message: "a run is already in progress",
				},
			})
			return
		}

		go func() {
			summary, err := runs.ExecuteTasks(base)
			if err != nil {
				slog.Error("manual run failed", "code", models.CodeOf(err), "error", err)
				return
			}
			if summary.Skipped {
				slog.Info("manual run skipped, another run started first", "run_id", summary.RunID)
			}
		}()

		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	}
}

// GetLastRun returns a handler for GET /api/v1/runs/last.
func GetLastRun(runs RunTrigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		last := runs.LastRun()
		if last == nil {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "no run has completed yet"},
			})
			return
		}
		c.JSON(http.StatusOK, last)
	}
}
