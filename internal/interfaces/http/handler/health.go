// Package handler serves the worker's operational endpoints.
package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/pipeline"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultProbeTimeout bounds each dependency ping made by the readiness probe
const DefaultProbeTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource exposes processor counters
type StatsSource interface {
	Stats() pipeline.Stats
}

// HealthHandler answers liveness, readiness and stats requests
type HealthHandler struct {
	name         string
	startTime    time.Time
	broker       Pinger
	stats        StatsSource
	probeTimeout time.Duration
	logger       *zap.Logger
}

// HealthOption configures a HealthHandler
type HealthOption func(*HealthHandler)

// WithProbeTimeout overrides DefaultProbeTimeout
func WithProbeTimeout(d time.Duration) HealthOption {
	return func(h *HealthHandler) {
		if d > 0 {
			h.probeTimeout = d
		}
	}
}

// WithLogger sets the logger used for failed probes
func WithLogger(zapLogger *zap.Logger) HealthOption {
	return func(h *HealthHandler) {
		if zapLogger != nil {
			h.logger = zapLogger
		}
	}
}

// WithServiceName sets the name reported by the liveness probe
func WithServiceName(name string) HealthOption {
	return func(h *HealthHandler) {
		h.name = name
	}
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(broker Pinger, stats StatsSource, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{
		name:         "invoicesync",
		startTime:    time.Now(),
		broker:       broker,
		stats:        stats,
		probeTimeout: DefaultProbeTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes mounts /health, /ready and /stats on rg
func (h *HealthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
	rg.GET("/stats", h.Stats)
}

// Health reports that the process is alive
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"name":       h.name,
		"go_version": runtime.Version(),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
		"time":       time.Now().Format(time.RFC3339),
	})
}

// Ready reports whether the worker can take messages: the processor is
// running and the broker answers a ping. The customer mapping snapshot is
// loaded at startup, so the database is not probed.
func (h *HealthHandler) Ready(c *gin.Context) {
	reqLog := logger.WithLogger(c.Request.Context(), h.logger)
	checks := gin.H{}
	ready := true

	if h.stats != nil {
		if h.stats.Stats().Running {
			checks["processor"] = "ok"
		} else {
			checks["processor"] = "stopped"
			ready = false
		}
	}
	if !h.probe(c.Request.Context(), "broker", h.broker, checks, reqLog) {
		ready = false
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Stats returns the processor counters
func (h *HealthHandler) Stats(c *gin.Context) {
	if h.stats == nil {
		c.JSON(http.StatusOK, pipeline.Stats{})
		return
	}
	c.JSON(http.StatusOK, h.stats.Stats())
}

func (h *HealthHandler) probe(ctx context.Context, name string, p Pinger, checks gin.H, log *logger.ContextLogger) bool {
	if p == nil {
		checks[name] = "missing"
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		log.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
		checks[name] = "error"
		return false
	}
	checks[name] = "ok"
	return true
}
