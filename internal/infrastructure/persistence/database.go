package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Database holds the database connection used to read customer mappings
type Database struct {
	DB *gorm.DB
}

// Option configures a Database
type Option func(*options)

type options struct {
	zapLogger     *zap.Logger
	logLevel      gormlogger.LogLevel
	slowThreshold time.Duration
	tracing       telemetry.DBTracingConfig
}

// WithLogger routes GORM logs through zapLogger at the given level
func WithLogger(zapLogger *zap.Logger, level gormlogger.LogLevel) Option {
	return func(o *options) {
		o.zapLogger = zapLogger
		o.logLevel = level
	}
}

// WithSlowThreshold sets the slow query threshold for the GORM logger
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithTracing registers the OpenTelemetry GORM plugin
func WithTracing(cfg telemetry.DBTracingConfig) Option {
	return func(o *options) {
		o.tracing = cfg
	}
}

// NewDatabase connects to PostgreSQL using cfg
func NewDatabase(cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	return Open(postgres.Open(cfg.DSN()), cfg, opts...)
}

// Open connects through an arbitrary dialector, applying cfg's pool settings
func Open(dialector gorm.Dialector, cfg *config.DatabaseConfig, opts ...Option) (*Database, error) {
	o := options{
		zapLogger:     zap.NewNop(),
		logLevel:      gormlogger.Silent,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.zapLogger == nil {
		o.zapLogger = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(o.zapLogger, o.logLevel, o.slowThreshold),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	database := &Database{DB: db}
	sqlDB, err := database.sqlDB()
	if err != nil {
		return nil, err
	}
	configurePool(sqlDB, cfg)

	if err := telemetry.RegisterDBTracing(db, o.tracing, o.zapLogger); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return database, nil
}

// configurePool applies the non-zero pool limits from cfg
func configurePool(sqlDB *sql.DB, cfg *config.DatabaseConfig) {
	if cfg == nil {
		return
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}
}

func (d *Database) sqlDB() (*sql.DB, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("persistence: underlying sql.DB: %w", err)
	}
	return sqlDB, nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
