// Package logger builds the worker's zap loggers and carries them through
// contexts, gin and gorm.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormat is millisecond RFC 3339
const DefaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

// New creates a zap logger. Extra cores (the OpenTelemetry log bridge) are
// teed with the output core and keep their own levels. An output file that
// cannot be opened falls back to stdout with a warning.
func New(cfg *Config, extra ...zapcore.Core) *zap.Logger {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "console"}
	}

	var opts []zap.Option
	if len(extra) > 0 {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(append([]zapcore.Core{core}, extra...)...)
		}))
	}

	zc := cfg.zapConfig()
	log, err := zc.Build(opts...)
	if err == nil {
		return log
	}

	zc.OutputPaths = []string{"stdout"}
	log, fallbackErr := zc.Build(opts...)
	if fallbackErr != nil {
		return zap.NewNop()
	}
	log.Warn("Log output unavailable, writing to stdout",
		zap.String("output", cfg.Output),
		zap.Error(err),
	)
	return log
}

func (c *Config) zapConfig() zap.Config {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.MessageKey = "msg"
	enc.FunctionKey = zapcore.OmitKey
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	layout := c.TimeFormat
	if layout == "" {
		layout = DefaultTimeFormat
	}
	enc.EncodeTime = zapcore.TimeEncoderOfLayout(layout)

	encoding := "json"
	if strings.EqualFold(c.Format, "console") {
		encoding = "console"
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	output := strings.TrimSpace(c.Output)
	if output == "" {
		output = "stdout"
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(c.Level)),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}
}

// ParseLevel converts a string level to zapcore.Level, defaulting to info
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		if strings.EqualFold(level, "warning") {
			return zapcore.WarnLevel
		}
		return zapcore.InfoLevel
	}
	return lvl
}
