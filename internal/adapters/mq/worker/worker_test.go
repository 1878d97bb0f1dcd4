package worker_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	worker "github.com/okian/unirank/internal/adapters/mq/worker"
	model "github.com/okian/unirank/internal/domain/model"
	"github.com/okian/unirank/internal/domain/ranking"
	logging "github.com/okian/unirank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	ch chan model.PlatformUpdate
}

func newMockQueue() *mockQueue {
	return &mockQueue{ch: make(chan model.PlatformUpdate, 100)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan model.PlatformUpdate {
	return mq.ch
}

type mockApplier struct {
	mu      sync.Mutex
	applied []string
	fail    map[string]error
	seen    chan string
}

func newMockApplier() *mockApplier {
	return &mockApplier{fail: make(map[string]error), seen: make(chan string, 100)}
}

func (ma *mockApplier) Apply(ctx context.Context, u model.PlatformUpdate) error {
	ma.mu.Lock()
	err := ma.fail[u.UpdateID]
	if err == nil {
		ma.applied = append(ma.applied, u.UpdateID)
	}
	ma.mu.Unlock()
	ma.seen <- u.UpdateID
	return err
}

func (ma *mockApplier) appliedIDs() []string {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	return append([]string(nil), ma.applied...)
}

// recordingLogger keeps the messages logged at error level.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Error(_ context.Context, msg string, _ ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Info(context.Context, string, ...logging.Field)  {}
func (l *recordingLogger) Debug(context.Context, string, ...logging.Field) {}
func (l *recordingLogger) Warn(context.Context, string, ...logging.Field)  {}
func (l *recordingLogger) Fatal(context.Context, string, ...logging.Field) {}
func (l *recordingLogger) Named(string) logging.Logger                     { return l }
func (l *recordingLogger) With(...logging.Field) logging.Logger            { return l }

func (l *recordingLogger) errorMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

func waitFor(ch <-chan string, n int) int {
	got := 0
	timeout := time.After(2 * time.Second)
	for got < n {
		select {
		case <-ch:
			got++
		case <-timeout:
			return got
		}
	}
	return got
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		applier := newMockApplier()

		convey.Convey("When creating a worker with options", func() {
			w := worker.NewInMemoryWorker(q, applier, worker.WithName("writer"), worker.WithLogger(logging.Get()))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(w, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When updates are queued", func() {
			w := worker.NewInMemoryWorker(q, applier)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			for i := 0; i < 20; i++ {
				q.ch <- model.PlatformUpdate{UpdateID: fmt.Sprintf("upd-%02d", i), Platform: "Codeforces"}
			}
			processed := waitFor(applier.seen, 20)

			convey.Convey("Then they should be applied in arrival order", func() {
				convey.So(processed, convey.ShouldEqual, 20)
				ids := applier.appliedIDs()
				convey.So(len(ids), convey.ShouldEqual, 20)
				for i, id := range ids {
					convey.So(id, convey.ShouldEqual, fmt.Sprintf("upd-%02d", i))
				}
			})
		})

		convey.Convey("When an update fails", func() {
			applier.fail["bad"] = fmt.Errorf("apply: %w", ranking.ErrNotFound)
			w := worker.NewInMemoryWorker(q, applier)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go w.Run(ctx)

			q.ch <- model.PlatformUpdate{UpdateID: "bad", Platform: "Nowhere"}
			q.ch <- model.PlatformUpdate{UpdateID: "good", Platform: "Codeforces"}
			processed := waitFor(applier.seen, 2)

			convey.Convey("Then the worker should keep going without retrying", func() {
				convey.So(processed, convey.ShouldEqual, 2)
				convey.So(applier.appliedIDs(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When an update fails with a recording logger", func() {
			applier.fail["bad"] = fmt.Errorf("apply: %w", ranking.ErrInvalidInput)
			log := &recordingLogger{}
			w := worker.NewInMemoryWorker(q, applier, worker.WithLogger(log))
			q.ch <- model.PlatformUpdate{UpdateID: "bad", Platform: "Codeforces"}
			q.ch <- model.PlatformUpdate{UpdateID: "good", Platform: "Codeforces"}
			close(q.ch)
			go w.Run(context.Background())

			var finished bool
			select {
			case <-w.Done():
				finished = true
			case <-time.After(2 * time.Second):
			}

			convey.Convey("Then the failure should be logged exactly once", func() {
				convey.So(finished, convey.ShouldBeTrue)
				convey.So(log.errorMessages(), convey.ShouldResemble, []string{"update rejected"})
			})
		})

		convey.Convey("When the queue is closed", func() {
			w := worker.NewInMemoryWorker(q, applier)
			q.ch <- model.PlatformUpdate{UpdateID: "last"}
			close(q.ch)
			go w.Run(context.Background())

			var finished bool
			select {
			case <-w.Done():
				finished = true
			case <-time.After(2 * time.Second):
			}

			convey.Convey("Then the worker should drain and exit", func() {
				convey.So(finished, convey.ShouldBeTrue)
				convey.So(applier.appliedIDs(), convey.ShouldResemble, []string{"last"})
			})
		})

		convey.Convey("When shutting down", func() {
			w := worker.NewInMemoryWorker(q, applier)
			go w.Run(context.Background())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := w.Shutdown(ctx)

			convey.Convey("Then it should stop and tolerate a second call", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shutdown times out", func() {
			w := worker.NewInMemoryWorker(q, applier)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			convey.Convey("Then it should report the timeout", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldNotBeNil)
			})
		})
	})
}
