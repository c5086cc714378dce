package service

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/talentboard/internal/adapters/repository"
	"github.com/okian/talentboard/internal/domain/model"
	"github.com/okian/talentboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithOwner sets the identity allowed to verify talents.
func WithOwner(owner model.Identity) Option {
	return func(s *Service) {
		s.owner = owner
	}
}

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTracer sets the tracer operations open spans with.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithWorkerCount sets the number of directory workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxPageSize caps the page size of every listing.
func WithMaxPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxPageSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
