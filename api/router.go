// Package api exposes the lookup pipeline over HTTP.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/serpwalk/api/handler"
	"github.com/use-agent/serpwalk/api/middleware"
	"github.com/use-agent/serpwalk/cache"
	"github.com/use-agent/serpwalk/config"
	"github.com/use-agent/serpwalk/pipeline"
)

// Deps are the services the routes call into.
type Deps struct {
	Runner        handler.Runner
	Queue         *handler.JobQueue
	Store         pipeline.RecordWriter
	Records       handler.RecordLister
	Cache         *cache.Cache
	Authenticated func() bool
	StartTime     time.Time
}

// NewRouter creates a configured Gin engine.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Queue, deps.Authenticated, deps.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/lookup", handler.Lookup(deps.Runner, deps.Store, deps.Cache))
	protected.POST("/batch", handler.PostBatch(deps.Queue))
	protected.GET("/batch/:id", handler.GetBatch(deps.Queue))
	if deps.Records != nil {
		protected.GET("/records", handler.ListRecords(deps.Records))
	}

	return r
}
