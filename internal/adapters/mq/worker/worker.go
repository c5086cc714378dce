// Package worker runs the background consumers that apply committed
// registry events to read models.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/talentboard/internal/adapters/mq/queue"
	"github.com/okian/talentboard/pkg/logger"
	"github.com/okian/talentboard/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Event is what workers read off the queue.
type Event = queue.Event

// Projector applies one committed event to a read model. Apply must be
// safe for concurrent use and tolerate events arriving out of order.
type Projector interface {
	Apply(ctx context.Context, e Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue channel closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the current event.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	projector Projector
	name      string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, projector Projector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		projector: projector,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.processEvent(ctx, e); err != nil {
				w.logger.Error(ctx, "error processing event", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processEvent(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.projector.Apply(ctx, e); err != nil {
		metrics.RecordWorkerError()
		return fmt.Errorf("apply event %d (%s): %w", e.Seq, e.Kind, err)
	}
	metrics.RecordEventApplied()
	w.logger.Debug(ctx, "event applied",
		logger.Uint64("seq", e.Seq),
		logger.String("kind", string(e.Kind)),
	)
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates workerCount workers; a non-positive count uses the
// number of CPUs.
func NewPool(workerCount int, q Queue, projector Projector) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, projector, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Shutdown closes the queue, lets the workers drain it and waits for them
// until ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
