package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	rg.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNew_Prefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
		status int
	}{
		{name: "root", path: "/ping", status: http.StatusOK},
		{name: "prefixed", prefix: "/ops/", path: "/ops/ping", status: http.StatusOK},
		{name: "bare prefix", prefix: "ops", path: "/ops/ping", status: http.StatusOK},
		{name: "prefix required", prefix: "ops", path: "/ping", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := New(Config{Prefix: tt.prefix}, nil, pingRoutes{})

			assert.Equal(t, tt.status, serve(engine, tt.path).Code)
		})
	}
}

func TestNew_RecoversAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	engine := New(Config{ServiceName: "invoicesync"}, zap.New(core), pingRoutes{})

	w := serve(engine, "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = serve(engine, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
	assert.Equal(t, 1, logs.FilterMessage("HTTP Request").FilterField(zap.Int("status", http.StatusInternalServerError)).Len())
}

func TestNew_WithTracing(t *testing.T) {
	engine := New(Config{ServiceName: "invoicesync", TracingEnabled: true}, nil, pingRoutes{})

	assert.Equal(t, http.StatusOK, serve(engine, "/ping").Code)
}
