package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/sellerwatch/api/handler"
	"github.com/use-agent/sellerwatch/api/middleware"
	"github.com/use-agent/sellerwatch/config"
	"github.com/use-agent/sellerwatch/events"
	"github.com/use-agent/sellerwatch/models"
)

// Deps are the services the routes expose.
type Deps struct {
	Store    handler.TaskStore
	Runs     handler.RunTrigger
	Hub      *events.Hub
	Gatherer prometheus.Gatherer
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background work started by the API (manual runs, limiter
// eviction).
//
// Middleware chain:
//
//	Global:  Recovery → RequestLogger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Runs, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	var emitter handler.Emitter
	if deps.Hub != nil {
		emitter = deps.Hub
	}

	// Tasks
	protected.GET("/tasks", handler.ListTasks(deps.Store))
	protected.POST("/tasks", handler.CreateTask(deps.Store, emitter))
	protected.GET("/tasks/:id", handler.GetTask(deps.Store))
	protected.GET("/tasks/:id/snapshots", handler.ListSnapshots(deps.Store))

	// Proxy
	protected.PUT("/proxy", handler.SetProxy(deps.Store))

	// Runs
	protected.POST("/runs", handler.PostRun(deps.Runs, ctx))
	protected.GET("/runs/last", handler.GetLastRun(deps.Runs))

	// Events
	if deps.Hub != nil {
		protected.GET("/events", handler.Events(deps.Hub))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "route not found"},
		})
	})

	return r
}
