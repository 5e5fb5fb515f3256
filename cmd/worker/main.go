// Command worker consumes posted invoices from the queue and delivers them to
// the configured accounting system.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/invoicesync/internal/application/integration"
	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/pipeline"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
	"github.com/erp/invoicesync/internal/interfaces/http/handler"
	"github.com/erp/invoicesync/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	}
	log := logger.New(logCfg)

	// Telemetry comes up first so the final logger can tee into the log
	// exporter.
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ExportInterval:    cfg.Telemetry.ExportInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if providers.Enabled() {
		log = logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting invoice sync worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("target", cfg.Target.System),
		zap.String("queue", cfg.Queue.Transport),
	)

	code := 0
	if err := run(ctx, cfg, providers, log); err != nil {
		log.Error("Worker stopped with error", zap.Error(err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush telemetry", zap.Error(err))
	}
	cancel()

	if code != 0 {
		_ = log.Sync()
		os.Exit(code)
	}
}

// run wires the worker and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, providers *telemetry.Providers, log *zap.Logger) error {
	metrics, err := telemetry.NewPipelineMetrics(providers.Meter(telemetry.TracerName))
	if err != nil {
		return err
	}

	target, err := invoice.ParseTargetSystem(cfg.Target.System)
	if err != nil {
		return err
	}
	profile, err := integration.ProfileFor(target, cfg.Target.AccountCode)
	if err != nil {
		return err
	}

	store, err := newSecretStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	mapper, err := newCustomerMapper(ctx, cfg, target, log)
	if err != nil {
		return err
	}
	client, err := newDeliveryClient(cfg, target, store, log)
	if err != nil {
		return err
	}

	syncer := integration.NewSyncService(integration.NewInvoiceTransformer(mapper, profile), client, target, metrics, log)

	broker, err := newBroker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := broker.Close(); err != nil {
			log.Warn("Error closing broker", zap.Error(err))
		}
	}()

	h := pipeline.NewHandler(broker, syncer, pipeline.HandlerConfig{
		MaxDeliveryCount: cfg.Pipeline.MaxDeliveryAttempts,
		ActionTimeout:    cfg.Pipeline.ActionTimeout,
	}, metrics, log)
	processor := pipeline.NewProcessor(broker, h, pipeline.ProcessorConfig{
		Concurrency:    cfg.Pipeline.Concurrency,
		ReceiveBackoff: cfg.Pipeline.ReceiveBackoff,
	}, log)
	if err := processor.Start(ctx); err != nil {
		return err
	}

	var srv *http.Server
	serverErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		engine := router.New(router.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			TracingEnabled: cfg.Telemetry.Enabled,
			Release:        cfg.App.Env == "production",
		}, log, handler.NewHealthHandler(broker, processor,
			handler.WithServiceName(cfg.App.Name),
			handler.WithLogger(log),
		))

		srv = &http.Server{
			Addr:         ":" + cfg.HTTP.Port,
			Handler:      engine,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
		go func() {
			log.Info("Operational server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down worker...")
	case runErr = <-serverErr:
		log.Error("Operational server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Operational server forced to shutdown", zap.Error(err))
		}
	}
	if err := processor.Stop(shutdownCtx); err != nil {
		log.Error("In-flight messages did not settle before shutdown", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}

	stats := processor.Stats()
	log.Info("Worker exited",
		zap.Int64("received", stats.Received),
		zap.Int64("completed", stats.Completed),
		zap.Int64("abandoned", stats.Abandoned),
		zap.Int64("dead_lettered", stats.DeadLettered),
		zap.Int64("action_failures", stats.ActionFailures),
	)
	return runErr
}
