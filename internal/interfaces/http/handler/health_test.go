package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/invoicesync/internal/infrastructure/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy() pingerFunc { return func(context.Context) error { return nil } }

type fixedStats pipeline.Stats

func (s fixedStats) Stats() pipeline.Stats { return pipeline.Stats(s) }

func newEngine(h *HealthHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h.RegisterRoutes(engine.Group("/"))
	return engine
}

func get(t *testing.T, engine *gin.Engine, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestNewHealthHandler(t *testing.T) {
	h := NewHealthHandler(healthy(), nil, WithProbeTimeout(0), WithServiceName("worker-a"))

	assert.False(t, h.startTime.IsZero())
	assert.Equal(t, DefaultProbeTimeout, h.probeTimeout)
	assert.Equal(t, "worker-a", h.name)
	assert.NotNil(t, h.logger)
}

func TestHealthHandler_Health(t *testing.T) {
	// liveness does not depend on the broker
	h := NewHealthHandler(pingerFunc(func(context.Context) error { return errors.New("down") }), nil)

	code, body := get(t, newEngine(h), "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "invoicesync", body["name"])
	assert.NotEmpty(t, body["go_version"])
	assert.NotEmpty(t, body["uptime"])
}

func TestHealthHandler_Ready(t *testing.T) {
	running := fixedStats{Running: true}

	tests := []struct {
		name       string
		broker     Pinger
		stats      StatsSource
		wantCode   int
		wantChecks map[string]any
	}{
		{
			name:       "all healthy",
			broker:     healthy(),
			stats:      running,
			wantCode:   http.StatusOK,
			wantChecks: map[string]any{"processor": "ok", "broker": "ok"},
		},
		{
			name:       "broker down",
			broker:     pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
			stats:      running,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]any{"processor": "ok", "broker": "error"},
		},
		{
			name:       "processor stopped",
			broker:     healthy(),
			stats:      fixedStats{Running: false},
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]any{"processor": "stopped", "broker": "ok"},
		},
		{
			name:       "no processor",
			broker:     healthy(),
			wantCode:   http.StatusOK,
			wantChecks: map[string]any{"broker": "ok"},
		},
		{
			name:       "no broker",
			stats:      running,
			wantCode:   http.StatusServiceUnavailable,
			wantChecks: map[string]any{"processor": "ok", "broker": "missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.broker, tt.stats)

			code, body := get(t, newEngine(h), "/ready")

			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantChecks, body["checks"])
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "ready", body["status"])
			} else {
				assert.Equal(t, "unavailable", body["status"])
			}
		})
	}
}

func TestHealthHandler_ReadyBoundsSlowDependencies(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	slow := pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h := NewHealthHandler(slow, nil, WithProbeTimeout(20*time.Millisecond), WithLogger(zap.New(core)))

	start := time.Now()
	code, _ := get(t, newEngine(h), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, logs.FilterMessage("Readiness check failed").Len())
	assert.Equal(t, "broker", logs.All()[0].ContextMap()["dependency"])
}

func TestHealthHandler_Stats(t *testing.T) {
	stats := fixedStats{
		Received:       10,
		Completed:      6,
		Abandoned:      2,
		DeadLettered:   1,
		ActionFailures: 1,
		Workers:        4,
		Running:        true,
	}
	h := NewHealthHandler(healthy(), stats)

	code, body := get(t, newEngine(h), "/stats")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(10), body["received"])
	assert.Equal(t, float64(6), body["completed"])
	assert.Equal(t, float64(2), body["abandoned"])
	assert.Equal(t, float64(1), body["dead_lettered"])
	assert.Equal(t, float64(1), body["action_failures"])
	assert.Equal(t, float64(0), body["receive_errors"])
	assert.Equal(t, float64(4), body["workers"])
	assert.Equal(t, true, body["running"])
}

func TestHealthHandler_StatsWithoutProcessor(t *testing.T) {
	code, body := get(t, newEngine(NewHealthHandler(healthy(), nil)), "/stats")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["received"])
	assert.Equal(t, false, body["running"])
}
