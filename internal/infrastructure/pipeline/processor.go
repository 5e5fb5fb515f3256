package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/invoicesync/internal/domain/invoice"
	"github.com/erp/invoicesync/internal/infrastructure/queue"
	"go.uber.org/zap"
)

// ProcessorConfig holds configuration for the message processor
type ProcessorConfig struct {
	Concurrency    int
	ReceiveBackoff time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Concurrency:    4,
		ReceiveBackoff: time.Second,
	}
}

// Stats is a snapshot of processor counters
type Stats struct {
	Received       int64 `json:"received"`
	Completed      int64 `json:"completed"`
	Abandoned      int64 `json:"abandoned"`
	DeadLettered   int64 `json:"dead_lettered"`
	ActionFailures int64 `json:"action_failures"`
	ReceiveErrors  int64 `json:"receive_errors"`
	Workers        int   `json:"workers"`
	Running        bool  `json:"running"`
}

// Processor runs a pool of workers, each receiving and handling one message
// at a time.
type Processor struct {
	broker  queue.Broker
	handler *Handler
	config  ProcessorConfig
	logger  *zap.Logger

	received       atomic.Int64
	completed      atomic.Int64
	abandoned      atomic.Int64
	deadLettered   atomic.Int64
	actionFailures atomic.Int64
	receiveErrors  atomic.Int64
	running        atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a new processor
func NewProcessor(broker queue.Broker, handler *Handler, config ProcessorConfig, logger *zap.Logger) *Processor {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.ReceiveBackoff <= 0 {
		config.ReceiveBackoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		broker:  broker,
		handler: handler,
		config:  config,
		logger:  logger,
	}
}

// Start launches the workers. It returns immediately.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return errors.New("pipeline: processor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running.Store(true)

	for i := 0; i < p.config.Concurrency; i++ {
		p.wg.Add(1)
		go p.workerLoop(ctx, i)
	}

	p.logger.Info("invoice processor started",
		zap.Int("concurrency", p.config.Concurrency),
		zap.Duration("receive_backoff", p.config.ReceiveBackoff),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight messages to settle, or
// for ctx to expire.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.running.Store(false)
		p.logger.Info("invoice processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the counters
func (p *Processor) Stats() Stats {
	return Stats{
		Received:       p.received.Load(),
		Completed:      p.completed.Load(),
		Abandoned:      p.abandoned.Load(),
		DeadLettered:   p.deadLettered.Load(),
		ActionFailures: p.actionFailures.Load(),
		ReceiveErrors:  p.receiveErrors.Load(),
		Workers:        p.config.Concurrency,
		Running:        p.running.Load(),
	}
}

// Running reports whether the workers are active
func (p *Processor) Running() bool {
	return p.running.Load()
}

// workerLoop receives and handles messages until ctx is cancelled
func (p *Processor) workerLoop(ctx context.Context, worker int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", worker))

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := p.broker.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			p.receiveErrors.Add(1)
			log.Error("failed to receive message", zap.Error(err))
			if !sleep(ctx, p.config.ReceiveBackoff) {
				return
			}
			continue
		}
		if msg == nil {
			continue
		}

		p.received.Add(1)
		p.record(p.handler.Handle(ctx, msg))
	}
}

func (p *Processor) record(result Result) {
	if result.ActionErr != nil {
		p.actionFailures.Add(1)
		return
	}
	switch result.Decision.Action {
	case invoice.ActionComplete:
		p.completed.Add(1)
	case invoice.ActionAbandon:
		p.abandoned.Add(1)
	case invoice.ActionDeadLetter:
		p.deadLettered.Add(1)
	}
}

// sleep waits for d or ctx, reporting whether d elapsed
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
