package dispatcher

import (
	"admin-backend/internal/observability"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrPoolNotStarted   = errors.New("worker pool not started")
	ErrPoolShuttingDown = errors.New("worker pool is shutting down")
	ErrDrainTimeout     = errors.New("drain timeout exceeded")
)

// Source feeds deliveries to the dispatcher until ctx is cancelled or the
// underlying connection fails.
type Source interface {
	Consume(ctx context.Context, submit func(context.Context, Delivery) error) error
}

// Run starts the worker pool, consumes src until ctx is cancelled and then
// waits for in-flight deliveries. Handlers are not cancelled by shutdown.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	p := newPool(d)
	p.start(ctx)

	consumeErr := src.Consume(ctx, p.submit)
	if errors.Is(consumeErr, context.Canceled) {
		consumeErr = nil
	}

	drainErr := p.drain(ctx)
	return errors.Join(consumeErr, drainErr)
}

// pool hands deliveries to a fixed set of workers.
type pool struct {
	dispatcher *Dispatcher
	logger     *observability.Logger

	deliveries chan Delivery
	wg         sync.WaitGroup

	mu       sync.Mutex
	started  bool
	draining bool
}

func newPool(d *Dispatcher) *pool {
	return &pool{
		dispatcher: d,
		logger:     d.logger,
		deliveries: make(chan Delivery, d.config.QueueSize),
	}
}

func (p *pool) start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	workerCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.dispatcher.config.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}
	p.started = true

	p.logger.Info(ctx, fmt.Sprintf("Started %d dispatcher workers", p.dispatcher.config.WorkerCount))
}

// submit blocks until a worker queue slot is free or ctx is cancelled.
func (p *pool) submit(ctx context.Context, delivery Delivery) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return ErrPoolNotStarted
	}
	if p.draining {
		p.mu.Unlock()
		return ErrPoolShuttingDown
	}
	p.mu.Unlock()

	select {
	case p.deliveries <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain stops accepting deliveries and waits for the queue to empty.
func (p *pool) drain(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.draining {
		p.mu.Unlock()
		return nil
	}
	p.draining = true
	close(p.deliveries)
	p.mu.Unlock()

	logCtx := context.WithoutCancel(ctx)
	p.logger.Info(logCtx, fmt.Sprintf("Draining dispatcher, %d deliveries queued", len(p.deliveries)))

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(logCtx, p.dispatcher.config.DrainTimeout)
	defer cancel()

	select {
	case <-done:
		p.logger.Info(logCtx, "All dispatcher workers finished")
		return nil
	case <-drainCtx.Done():
		p.logger.Warn(logCtx, "Drain timeout - some deliveries may not have completed")
		return ErrDrainTimeout
	}
}

func (p *pool) worker(ctx context.Context, workerID int) {
	defer p.wg.Done()

	ctx = observability.WithFields(ctx, observability.Field{Key: "worker_id", Value: workerID})

	for delivery := range p.deliveries {
		start := time.Now()
		outcome := p.dispatcher.Dispatch(ctx, delivery)
		p.logger.Metrics(ctx,
			observability.MetricField{Key: "delivery_id", Value: delivery.ID()},
			observability.MetricField{Key: "outcome", Value: outcome.String()},
			observability.MetricField{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
	}
}
