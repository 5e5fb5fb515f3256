// Package middleware provides HTTP middleware for the operational endpoints.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength caps the X-Request-ID value copied onto spans
const MaxRequestIDLength = 128

// TracingConfig configures TracingWithConfig
type TracingConfig struct {
	ServiceName string // server name on HTTP spans, "invoicesync" when empty
	Enabled     bool
}

// TracingWithConfig returns the otelgin middleware, or a pass-through when
// tracing is disabled.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "invoicesync"
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanEnricher runs inside the otelgin span and annotates it once the handler
// has answered.
func SpanEnricher() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		if id := requestID(c); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}

func requestID(c *gin.Context) string {
	id := c.GetHeader("X-Request-ID")
	if len(id) > MaxRequestIDLength {
		return id[:MaxRequestIDLength]
	}
	return id
}
