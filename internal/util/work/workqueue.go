// Package work runs queued jobs on a fixed set of workers with priorities and
// bounded retries.
package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"vietscribe-go/internal/util"
)

var (
	ErrWorkQueueClosed = errors.New("work queue closed")
	ErrMaxRetries      = errors.New("max retries exceeded")
)

// Item is one queued job with its retry bookkeeping.
type Item[T any] struct {
	Data       T
	Priority   int
	Attempts   int
	MaxRetries int
	LastError  error
	CreatedAt  time.Time
}

// Handler processes one job. ctx is cancelled when the queue stops.
type Handler[T any] func(ctx context.Context, data T) error

// Option customises a Queue.
type Option[T any] func(*Queue[T])

// WithRetryable limits retries to errors for which fn returns true.
func WithRetryable[T any](fn func(error) bool) Option[T] {
	return func(q *Queue[T]) { q.retryable = fn }
}

// WithBackoff sets the delay before retry attempt n (1-based).
func WithBackoff[T any](fn func(attempt int) time.Duration) Option[T] {
	return func(q *Queue[T]) { q.backoff = fn }
}

// WithDeadLetter receives items that exhausted their retries or were still
// queued when the queue stopped.
func WithDeadLetter[T any](fn func(Item[T])) Option[T] {
	return func(q *Queue[T]) { q.deadLetter = fn }
}

// Queue is a priority work queue.
type Queue[T any] struct {
	queue      *util.PriorityQueue[*Item[T]]
	handler    Handler[T]
	numWorkers int
	retryable  func(error) bool
	backoff    func(int) time.Duration
	deadLetter func(Item[T])

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Int64
}

// NewWorkQueue creates a queue with numWorkers workers. Call Start to begin
// processing.
func NewWorkQueue[T any](numWorkers int, handler Handler[T], opts ...Option[T]) *Queue[T] {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	q := &Queue[T]{
		queue:      util.NewPriorityQueue[*Item[T]](),
		handler:    handler,
		numWorkers: numWorkers,
		retryable:  func(error) bool { return true },
		backoff: func(attempt int) time.Duration {
			d := time.Duration(attempt) * time.Second
			if d > time.Minute {
				d = time.Minute
			}
			return d
		},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.numWorkers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Submit queues data without retries.
func (q *Queue[T]) Submit(data T, priority int) error {
	return q.SubmitWithRetries(data, priority, 0)
}

// SubmitWithRetries queues data allowing maxRetries further attempts after a
// failure.
func (q *Queue[T]) SubmitWithRetries(data T, priority int, maxRetries int) error {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return ErrWorkQueueClosed
	}

	item := &Item[T]{
		Data:       data,
		Priority:   priority,
		MaxRetries: maxRetries,
		CreatedAt:  time.Now(),
	}
	if err := q.queue.PushItem(item, priority); err != nil {
		return ErrWorkQueueClosed
	}
	return nil
}

// Stop rejects new work, cancels running handlers and waits for the workers.
// Jobs that never started go to the dead letter handler with ErrWorkQueueClosed.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	cancel := q.cancel
	q.mu.Unlock()

	q.queue.Close()
	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	for {
		item, err := q.queue.TryPop()
		if err != nil {
			return
		}
		item.LastError = ErrWorkQueueClosed
		q.dead(item)
	}
}

// IsStopped reports whether Stop was called.
func (q *Queue[T]) IsStopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

// Stats reports queued and running job counts.
func (q *Queue[T]) Stats() (queued, running int) {
	return q.queue.Len(), int(q.running.Load())
}

func (q *Queue[T]) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		item, err := q.queue.TryPop()
		if err == nil {
			q.process(ctx, item)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-q.queue.Ready():
		}
	}
}

func (q *Queue[T]) process(ctx context.Context, item *Item[T]) {
	q.running.Add(1)
	defer q.running.Add(-1)

	for {
		item.Attempts++
		err := q.run(ctx, item.Data)
		if err == nil {
			return
		}
		item.LastError = err

		if ctx.Err() != nil || !q.retryable(err) {
			q.dead(item)
			return
		}
		if item.Attempts > item.MaxRetries {
			item.LastError = errors.Join(ErrMaxRetries, err)
			q.dead(item)
			return
		}

		timer := time.NewTimer(q.backoff(item.Attempts))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			q.dead(item)
			return
		}
	}
}

// run shields the worker from a panicking handler.
func (q *Queue[T]) run(ctx context.Context, data T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return q.handler(ctx, data)
}

func (q *Queue[T]) dead(item *Item[T]) {
	if q.deadLetter != nil {
		q.deadLetter(*item)
	}
}

// PanicError reports a recovered handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return "work handler panicked" }
