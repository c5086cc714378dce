// Package service implements the talent registry and project lifecycle on
// top of a transactional store, and feeds the talent directory from the
// events every committed mutation produces.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/okian/talentboard/internal/adapters/directory"
	eventqueue "github.com/okian/talentboard/internal/adapters/mq/queue"
	workerpool "github.com/okian/talentboard/internal/adapters/mq/worker"
	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/dedupe"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/internal/tracing"
	"github.com/okian/talentboard/pkg/logger"
	"github.com/okian/talentboard/pkg/metrics"
)

const (
	defaultQueueSize   = 10000
	defaultDedupeSize  = 50000
	defaultMaxPageSize = 100
	stopTimeout        = 10 * time.Second
)

// Clock supplies the current time to mutating operations.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

// Service is the registry. Construct one per process with New and share it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	directory  *directory.Directory

	// Configuration
	owner       model.Identity
	clock       Clock
	tracer      trace.Tracer
	workerCount int
	queueSize   int
	dedupeSize  int
	maxPageSize int

	// State
	started bool
	stopped bool

	logger logger.Logger
}

// New constructs a Service. Without WithStore it keeps the registry in memory.
func New(opts ...Option) *Service {
	s := &Service{
		clock:       ClockFunc(time.Now),
		tracer:      noop.NewTracerProvider().Tracer("noop"),
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		maxPageSize: defaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("registry")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.directory = directory.New(s.store,
		directory.WithMaxLimit(s.maxPageSize),
		directory.WithLogger(s.logger.Named("directory")),
	)
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.directory)
	return s
}

// Start builds the talent directory from the store and starts the workers
// that keep it current.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return errors.New("start: service already stopped")
	}

	s.logger.Info(ctx, "starting registry service...")
	if err := s.directory.Rebuild(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	s.workerPool.Start(context.WithoutCancel(ctx))
	s.started = true

	s.logger.Info(ctx, "registry service started",
		logger.String("owner", s.owner.String()),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the event queue into the directory and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping registry service...")
	if s.started {
		if err := s.workerPool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	} else {
		_ = s.eventQueue.Close()
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}

	s.started = false
	s.stopped = true
	s.logger.Info(ctx, "registry service stopped")
}

// Owner returns the identity allowed to verify talents.
func (s *Service) Owner() model.Identity { return s.owner }

// SeenAndRecord atomically checks if an idempotency key was seen and records
// it if not. Returns true if the key was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Unrecord forgets an idempotency key so a rejected request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of remembered idempotency keys.
func (s *Service) Size() int64 { return s.deduper.Size() }

// now is read inside the writer transaction of every mutation.
func (s *Service) now() time.Time { return s.clock.Now().UTC() }

// observe runs one registry operation inside a span and records its outcome.
// Rejections pass through unchanged; any other failure is prefixed with op.
func (s *Service) observe(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, tracing.SpanPrefixRegistry+op,
		trace.WithAttributes(append(attrs, attribute.String(tracing.AttrOperation, op))...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	latency := float64(time.Since(start).Microseconds()) / 1000

	switch re, rejected := model.AsRegistryError(err); {
	case err == nil:
		metrics.RecordOperation(op, metrics.OutcomeOK, latency)
	case rejected:
		metrics.RecordOperation(op, metrics.OutcomeRejected, latency)
		metrics.RecordRejection(op, re.Code)
		span.SetAttributes(attribute.String(tracing.AttrErrorCode, re.Code))
		s.logger.Debug(ctx, "operation rejected",
			logger.String("operation", op),
			logger.String("code", re.Code),
		)
	default:
		metrics.RecordOperation(op, metrics.OutcomeError, latency)
		err = fmt.Errorf("%s: %w", op, err)
		s.logger.Error(ctx, "operation failed", logger.String("operation", op), logger.Error(err))
	}
	tracing.RecordError(span, err)
	return err
}

// mutate runs fn in a writer transaction. The event fn returns is appended
// to the log in the same transaction and published once committed; an
// event without a kind means nothing changed.
func (s *Service) mutate(ctx context.Context, fn func(tx repository.Tx, now time.Time) (model.Event, error)) error {
	var committed model.Event
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		now := s.now()
		e, err := fn(tx, now)
		if err != nil || e.Kind == "" {
			return err
		}
		e.At = now
		committed, err = tx.AppendEvent(ctx, e)
		return err
	})
	if err != nil {
		return err
	}
	if committed.Seq != 0 {
		s.publish(ctx, committed)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, e model.Event) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int64(tracing.AttrEventSeq, int64(e.Seq))) //nolint:gosec // seq fits
	if err := s.eventQueue.Enqueue(context.WithoutCancel(ctx), e); err != nil {
		metrics.RecordEventDropped()
		s.logger.Warn(ctx, "event not dispatched; directory will catch up on restart",
			logger.Uint64("seq", e.Seq),
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
		return
	}
	metrics.RecordEventDispatched()
}

// loadTalent returns the stored talent or the empty record.
func loadTalent(ctx context.Context, r repository.Reader, id model.Identity) (model.Talent, error) {
	t, err := r.Talent(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Talent{}, nil
	}
	return t, err
}

func loadProject(ctx context.Context, r repository.Reader, id uint64) (model.Project, error) {
	p, err := r.Project(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Project{}, model.ErrProjectNotFound
	}
	return p, err
}
