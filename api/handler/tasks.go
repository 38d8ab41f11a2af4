package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/models"
)

// TaskStore is the persistence surface of the task endpoints.
type TaskStore interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	GetTask(ctx context.Context, id uint) (*models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	ListSnapshots(ctx context.Context, taskID uint, day string) ([]models.Snapshot, error)
	SetProxy(ctx context.Context, proxyURL string) error
}

// Emitter publishes UI refresh events.
type Emitter interface {
	Emit(name string, data any)
}

// ListTasks returns a handler for GET /api/v1/tasks.
func ListTasks(st TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks, err := st.ListTasks(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ListResponse[models.Task]{Items: tasks, Total: len(tasks)})
	}
}

// GetTask returns a handler for GET /api/v1/tasks/:id.
func GetTask(st TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := taskID(c)
		if !ok {
			return
		}
		task, err := st.GetTask(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task)
	}
}

// CreateTask returns a handler for POST /api/v1/tasks. New tasks start
// PENDING and are picked up by the next run.
func CreateTask(st TaskStore, emitter Emitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateTaskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		task := &models.Task{
			TaskName:     req.TaskName,
			MerchantID:   req.MerchantID,
			MinPrice:     req.MinPrice,
			MaxPrice:     req.MaxPrice,
			ScheduleType: req.ScheduleType,
			ProxyURL:     req.ProxyURL,
			Frequency:    req.Frequency,
			Status:       models.StatusPending,
		}
		if err := task.Validate(); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := st.CreateTask(c.Request.Context(), task); err != nil {
			respondError(c, err)
			return
		}
		if emitter != nil {
			emitter.Emit(events.TaskRefresh, map[string]any{"task_id": task.ID})
		}
		c.JSON(http.StatusCreated, task)
	}
}

// ListSnapshots returns a handler for GET /api/v1/tasks/:id/snapshots.
// The optional day query parameter (YYYY-MM-DD) restricts the result.
func ListSnapshots(st TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := taskID(c)
		if !ok {
			return
		}
		day := c.Query("day")
		if day != "" {
			if _, err := time.Parse(models.DayLayout, day); err != nil {
				badRequest(c, "day must be formatted as YYYY-MM-DD")
				return
			}
		}
		if _, err := st.GetTask(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		snaps, err := st.ListSnapshots(c.Request.Context(), id, day)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ListResponse[models.Snapshot]{Items: snaps, Total: len(snaps)})
	}
}

// SetProxy returns a handler for PUT /api/v1/proxy.
func SetProxy(st TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ProxyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := st.SetProxy(c.Request.Context(), req.ProxyURL); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ProxyConfig{ID: models.ActiveProxyID, ProxyURL: req.ProxyURL})
	}
}

func taskID(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || n == 0 {
		badRequest(c, "task id must be a positive integer")
		return 0, false
	}
	return uint(n), true
}
