// Package worker runs the single writer that applies queued platform updates
// to the rating engine in arrival order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/unirank/internal/domain/model"
	"github.com/okian/unirank/internal/domain/ranking"
	"github.com/okian/unirank/pkg/logger"
	"github.com/okian/unirank/pkg/metrics"
)

// Update abstracts what the worker reads off the queue.
type Update = model.PlatformUpdate

// Applier applies one platform update.
type Applier interface {
	Apply(ctx context.Context, u Update) error
}

// Queue defines how the worker receives updates.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Worker processes updates using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled, Shutdown is called
	// or the queue is closed and drained.
	Run(ctx context.Context)

	// Shutdown stops the worker without waiting for the queue to drain.
	Shutdown(ctx context.Context) error

	// Done is closed once Run has returned.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker. Exactly one should run per engine.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		applier:  applier,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
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

	updates := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			w.process(ctx, u)
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

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// process applies one update. Failures are counted and logged once, never retried.
func (w *InMemoryWorker) process(ctx context.Context, u Update) { //nolint:gocritic // hugeParam: value semantics on the channel
	start := time.Now()
	err := w.applier.Apply(ctx, u)
	if err == nil {
		return
	}

	kind := errorKind(err)
	metrics.RecordWorkerError()
	metrics.RecordErrorByComponent("worker", kind)
	metrics.RecordErrorByType(kind, "high")
	w.logger.Error(ctx, "update rejected",
		logger.String("updateID", u.UpdateID),
		logger.String("platform", u.Platform),
		logger.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000),
		logger.Error(err),
	)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ranking.ErrNotFound):
		return "not_found"
	case errors.Is(err, ranking.ErrInvalidInput):
		return "invalid_input"
	default:
		return "apply_error"
	}
}
