// Package router assembles the gin engine for the operational endpoints.
package router

import (
	"strings"

	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouteRegistrar mounts a handler's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config configures New
type Config struct {
	ServiceName    string
	TracingEnabled bool
	Release        bool
	// Prefix mounts every registrar under a path such as "/ops"
	Prefix string
}

// New builds a gin engine with request logging, panic recovery and optional
// tracing, then mounts the registrars. Request logging runs outermost so
// recovered panics are logged as 500s.
func New(cfg Config, log *zap.Logger, registrars ...RouteRegistrar) *gin.Engine {
	if cfg.Release {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(logger.GinMiddleware(log), logger.Recovery(log))
	if cfg.TracingEnabled {
		engine.Use(
			middleware.TracingWithConfig(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: true}),
			middleware.SpanEnricher(),
		)
	}

	group := engine.Group("/" + strings.Trim(cfg.Prefix, "/"))
	for _, r := range registrars {
		r.RegisterRoutes(group)
	}
	return engine
}
