package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/talentboard/internal/adapters/mq/queue"
	worker "github.com/okian/talentboard/internal/adapters/mq/worker"
	model "github.com/okian/talentboard/internal/domain/model"
	logging "github.com/okian/talentboard/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type recordingProjector struct {
	mu      sync.Mutex
	applied []uint64
	failOn  uint64
}

func (p *recordingProjector) Apply(_ context.Context, e model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e.Seq == p.failOn {
		return errors.New("projection failed")
	}
	p.applied = append(p.applied, e.Seq)
	return nil
}

func (p *recordingProjector) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

func fill(q *queue.InMemoryQueue, n int) {
	for i := 1; i <= n; i++ {
		_ = q.Enqueue(context.Background(), model.Event{Seq: uint64(i), Kind: model.EventTalentUpdated})
	}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker reading a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		p := &recordingProjector{failOn: 2}
		w := worker.NewInMemoryWorker(q, p, worker.WithName("test-worker"), worker.WithLogger(logging.Named("test")))

		convey.Convey("When events arrive and the queue closes", func() {
			fill(q, 3)
			_ = q.Close()
			w.Run(context.Background())

			convey.Convey("Then every event except the failing one is applied in order", func() {
				convey.So(p.applied, convey.ShouldResemble, []uint64{1, 3})
			})
		})

		convey.Convey("When the worker is shut down while idle", func() {
			go w.Run(context.Background())
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then Shutdown returns promptly and is repeatable", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the run context is canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			go func() {
				w.Run(ctx)
				close(done)
			}()
			cancel()

			convey.Convey("Then the loop exits", func() {
				select {
				case <-done:
				case <-time.After(time.Second):
					convey.So("worker still running", convey.ShouldBeEmpty)
				}
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(500))
		p := &recordingProjector{}
		pool := worker.NewPool(4, q, p)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When events are queued and the pool shuts down", func() {
			pool.Start(context.Background())
			fill(q, 500)
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is drained before the workers stop", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.count(), convey.ShouldEqual, 500)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When created with a non-positive size", func() {
			convey.So(worker.NewPool(0, q, p).Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
