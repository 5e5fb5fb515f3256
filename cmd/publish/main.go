// Command publish enqueues invoice JSON files onto the worker's Redis stream.
//
//	publish [-log-level info] [-allow-invalid] invoice1.json [invoice2.json ...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/queue"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	var (
		logLevel     string
		allowInvalid bool
	)
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&allowInvalid, "allow-invalid", false, "Enqueue files that do not decode as invoices")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: publish [flags] <invoice.json>...")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	defer func() {
		_ = log.Sync()
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Queue.Redis.Addr(),
		Password: cfg.Queue.Redis.Password,
		DB:       cfg.Queue.Redis.DB,
	})
	broker, err := queue.NewRedisStreamBroker(ctx, client, queue.RedisStreamConfig{
		Stream:           cfg.Queue.Stream,
		Group:            cfg.Queue.Group,
		DeadLetterStream: cfg.Queue.DeadLetterStream,
	}, log)
	if err != nil {
		_ = client.Close()
		log.Fatal("Failed to connect to queue", zap.Error(err))
	}
	defer broker.Close()

	published, err := publishFiles(ctx, broker, paths, allowInvalid, log)
	log.Info("Publish finished",
		zap.String("stream", cfg.Queue.Stream),
		zap.Int("published", published),
		zap.Int("files", len(paths)),
	)
	if err != nil {
		log.Error("Publish failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

// publishFiles enqueues each file as one message carrying the InvoiceId
// property. Files that fail to decode are skipped unless allowInvalid is set,
// in which case they are sent as-is and will be dead-lettered by the worker.
func publishFiles(ctx context.Context, pub queue.Publisher, paths []string, allowInvalid bool, log *zap.Logger) (int, error) {
	published := 0
	var skipped int
	for _, path := range paths {
		body, err := os.ReadFile(path)
		if err != nil {
			return published, fmt.Errorf("read %s: %w", path, err)
		}

		props := map[string]string{}
		src, err := invoice.Decode(body)
		switch {
		case err == nil:
			props[queue.PropertyInvoiceID] = src.InvoiceID
		case allowInvalid:
			log.Warn("Publishing file that does not decode", zap.String("file", path), zap.Error(err))
		default:
			log.Warn("Skipping file that does not decode", zap.String("file", path), zap.Error(err))
			skipped++
			continue
		}

		id, err := pub.Publish(ctx, body, props)
		if err != nil {
			return published, fmt.Errorf("publish %s: %w", path, err)
		}
		published++
		log.Info("Published invoice",
			zap.String("file", path),
			zap.String("message_id", id),
			zap.String("invoice_id", props[queue.PropertyInvoiceID]),
		)
	}
	if skipped > 0 {
		return published, fmt.Errorf("%d of %d files skipped", skipped, len(paths))
	}
	return published, nil
}
