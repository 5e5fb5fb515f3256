package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM output through zap. SQL traces use the logger found
// in the query context, so statements issued while handling a message carry
// its fields.
type GormLogger struct {
	gormlogger.Config
	logger *zap.Logger
}

// Ensure GormLogger implements gormlogger.Interface
var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GORM logger backed by zap. A zero slowThreshold
// disables slow query warnings. Record-not-found errors are never logged.
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		Config: gormlogger.Config{
			LogLevel:                  level,
			SlowThreshold:             slowThreshold,
			IgnoreRecordNotFoundError: true,
		},
		logger: zapLogger.Named("gorm"),
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, threshold gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.LogLevel < threshold {
		return
	}
	Ctx(ctx, l.logger).Log(lvl, strings.TrimSpace(fmt.Sprintf(msg, data...)))
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.LogLevel <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold
	notFound := errors.Is(err, gormlogger.ErrRecordNotFound) && l.IgnoreRecordNotFoundError

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil && !notFound && l.LogLevel >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "SQL Error"
	case slow && l.LogLevel >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, fmt.Sprintf("SLOW SQL >= %v", l.SlowThreshold)
	case err == nil && l.LogLevel >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "SQL Query"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if err != nil && !notFound {
		fields = append(fields, zap.Error(err))
	}
	Ctx(ctx, l.logger).Log(lvl, msg, fields...)
}

// MapGormLogLevel maps the application log level to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
