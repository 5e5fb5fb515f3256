package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"bogus", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	log := New(&Config{Level: "error", Format: "json", Output: "stderr"}, core)
	log.Info("hello", zap.String("k", "v"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")

	log := New(&Config{Level: "info", Format: "json", Output: path})
	log.Info("written to file")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_NilConfig(t *testing.T) {
	assert.NotNil(t, New(nil))
}

// ---------------------------------------------------------------------------
// Context Tests
// ---------------------------------------------------------------------------

func TestFromContext_DefaultsToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestWithMessageAndInvoiceID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx, _ := WithMessage(context.Background(), base, "msg-1", 2)
	ctx, log := WithInvoiceID(ctx, FromContext(ctx), "INV-1")

	assert.Equal(t, "msg-1", GetMessageID(ctx))
	assert.Equal(t, "INV-1", GetInvoiceID(ctx))
	assert.Empty(t, GetInvoiceID(context.Background()))

	log.Info("processing")
	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "msg-1", fields["message_id"])
	assert.Equal(t, int64(2), fields["delivery_count"])
	assert.Equal(t, "INV-1", fields["invoice_id"])
}

func TestContextLogger_AddsTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	ctx = WithContext(ctx, zap.New(core))

	L(ctx).With(zap.String("stage", "deliver")).Info("traced")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, "deliver", fields["stage"])
}

func TestContextLogger_NoSpan(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	WithLogger(context.Background(), zap.New(core)).Warn("plain")

	entries := recorded.All()
	require.Len(t, entries, 1)
	_, hasTrace := entries[0].ContextMap()["trace_id"]
	assert.False(t, hasTrace)
}

// ---------------------------------------------------------------------------
// Gin Tests
// ---------------------------------------------------------------------------

func TestGinMiddleware_LevelsByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.DebugLevel)

	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/ready", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "/ready", entries[1].ContextMap()["path"])
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	router := gin.New()
	router.Use(Recovery(zap.New(core)))
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "Panic recovered", recorded.All()[0].Message)
}

// ---------------------------------------------------------------------------
// Gorm Tests
// ---------------------------------------------------------------------------

func TestGormLogger_Trace(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Info, 100*time.Millisecond)
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT 1", 1 }

	gl.Trace(ctx, time.Now(), query, nil)
	gl.Trace(ctx, time.Now().Add(-time.Second), query, nil)
	gl.Trace(ctx, time.Now(), query, errors.New("connection reset"))
	gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)

	entries := recorded.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "SQL Query", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "SQL Error", entries[2].Message)
}

func TestGormLogger_SilentAndLogMode(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Silent, 0)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, nil)
	gl.Info(context.Background(), "ignored %d", 1)
	assert.Empty(t, recorded.All())

	loud := gl.LogMode(gormlogger.Info)
	loud.Info(context.Background(), "connected to %s", "db")
	require.Len(t, recorded.All(), 1)
	assert.Equal(t, "connected to db", recorded.All()[0].Message)
	assert.Equal(t, gormlogger.Silent, gl.LogLevel)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
