package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tgsearch/api/handler"
	"github.com/use-agent/tgsearch/api/middleware"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/render"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is outside auth so monitoring probes always work.
func NewRouter(sc handler.Searcher, md *render.Renderer, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health: no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group: auth, then rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/search", handler.Search(sc, md))

	return r
}
