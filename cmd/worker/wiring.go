package main

import (
	"context"
	"fmt"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/accounting"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/mapping"
	"github.com/erp/invoicesync/internal/infrastructure/persistence"
	"github.com/erp/invoicesync/internal/infrastructure/queue"
	"github.com/erp/invoicesync/internal/infrastructure/secrets"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// newSecretStore builds the configured provider behind a cache
func newSecretStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (secrets.Store, error) {
	var inner secrets.Store
	switch cfg.Secrets.Provider {
	case "s3":
		store, err := secrets.NewS3Store(ctx, secrets.S3Config{
			Endpoint:     cfg.Secrets.S3.Endpoint,
			Region:       cfg.Secrets.S3.Region,
			Bucket:       cfg.Secrets.S3.Bucket,
			Prefix:       cfg.Secrets.S3.Prefix,
			AccessKey:    cfg.Secrets.S3.AccessKey,
			SecretKey:    cfg.Secrets.S3.SecretKey,
			UsePathStyle: cfg.Secrets.S3.UsePathStyle,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("create s3 secret store: %w", err)
		}
		inner = store
	default:
		log.Warn("Using static secrets from configuration")
		inner = secrets.NewStaticStore(cfg.Secrets.Values)
	}
	return secrets.NewCachingStore(inner, cfg.Secrets.CacheTTL, cfg.Secrets.CacheSkew), nil
}

// newCustomerMapper merges the configured table with a one-off snapshot of the
// mapping database. Database rows win over configuration.
func newCustomerMapper(ctx context.Context, cfg *config.Config, target invoice.TargetSystem, log *zap.Logger) (*mapping.StaticCustomerMapper, error) {
	tables := []map[string]string{cfg.Mapping.Customers}

	dbCfg := cfg.Mapping.Database
	if dbCfg.Enabled {
		db, err := persistence.NewDatabase(&dbCfg,
			persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
			persistence.WithTracing(telemetry.DBTracingConfig{
				Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
				DBName:  dbCfg.DBName,
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to mapping database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn("Error closing mapping database", zap.Error(err))
			}
		}()

		snapshot, err := persistence.NewGormCustomerMappingRepository(db.DB, dbCfg.Table).LoadAll(ctx, target)
		if err != nil {
			return nil, err
		}
		log.Info("Loaded customer mapping snapshot",
			zap.String("table", dbCfg.Table),
			zap.Int("rows", len(snapshot)),
		)
		tables = append(tables, snapshot)
	}

	mapper := mapping.NewStaticCustomerMapper(log, tables...)
	log.Info("Customer mapper ready", zap.Int("mappings", mapper.Len()))
	return mapper, nil
}

// newDeliveryClient builds the client for target from the default registry
func newDeliveryClient(cfg *config.Config, target invoice.TargetSystem, store secrets.Store, log *zap.Logger) (invoice.DeliveryClient, error) {
	xeroCfg := accounting.NewXeroConfig(cfg.Xero.TenantID)
	xeroCfg.BaseURL = cfg.Xero.BaseURL
	xeroCfg.TokenSecretName = cfg.Xero.TokenSecret
	xeroCfg.Timeout = cfg.Xero.Timeout
	xeroCfg.SecretTimeout = cfg.Secrets.Timeout

	registry := accounting.DefaultRegistry(xeroCfg, &accounting.QuickBooksConfig{
		BaseURL: cfg.QuickBooks.BaseURL,
	})
	return registry.Build(target, accounting.Deps{
		Secrets:    store,
		HTTPClient: accounting.NewHTTPClient(),
		Logger:     log,
	})
}

// newBroker connects to the configured queue transport
func newBroker(ctx context.Context, cfg *config.Config, log *zap.Logger) (queue.Broker, error) {
	q := cfg.Queue
	if q.Transport == "memory" {
		log.Warn("Using in-memory queue; messages are lost on restart")
		return queue.NewMemoryBroker(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     q.Redis.Addr(),
		Password: q.Redis.Password,
		DB:       q.Redis.DB,
	})
	broker, err := queue.NewRedisStreamBroker(ctx, client, queue.RedisStreamConfig{
		Stream:           q.Stream,
		Group:            q.Group,
		DeadLetterStream: q.DeadLetterStream,
		LeaseDuration:    q.LeaseDuration,
		BlockTimeout:     q.BlockTimeout,
	}, log)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis stream %s: %w", q.Stream, err)
	}
	return broker, nil
}
