// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petenewcomb/offload-go/internal/boundq"
	"github.com/petenewcomb/offload-go/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	// MaxWorkers is the hard cap on the number of workers in a pool.
	MaxWorkers = 32

	// DefaultQueueCapacity is the task queue capacity used unless
	// [WithQueueCapacity] says otherwise.
	DefaultQueueCapacity = 1024
)

// A WorkerPool owns a fixed set of worker goroutines that drain a bounded FIFO
// of tasks. Submission never blocks: when the queue is full, [WorkerPool.Submit]
// fails with [ErrQueueFull] and the caller decides whether to retry or drop.
//
// Pools are created with [NewWorkerPool] and must be released with
// [WorkerPool.Shutdown]. All methods are safe for concurrent use.
type WorkerPool struct {
	numWorkers int
	logger     *zap.Logger
	metrics    *poolMetrics

	// mu guards queue and terminal. taskAvailable is signalled when a task is
	// queued or the pool becomes terminal; taskDone is broadcast whenever a
	// task finishes.
	mu            sync.Mutex
	taskAvailable sync.Cond
	taskDone      sync.Cond
	queue         *boundq.Queue[TaskFunc]
	terminal      bool

	// pending counts tasks submitted but not yet finished and active counts
	// tasks currently executing, so active <= pending always. Both change
	// only under mu but may be read without it.
	pending state.Counter
	active  state.Counter

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64

	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// PoolOption configures a [WorkerPool] at construction.
type PoolOption func(*poolOptions)

type poolOptions struct {
	queueCapacity int
	logger        *zap.Logger
	workerInit    func(worker int) error
	registerer    prometheus.Registerer
	metricsPrefix string
}

// WithQueueCapacity sets the maximum number of queued tasks. Panics if
// capacity is less than one.
func WithQueueCapacity(capacity int) PoolOption {
	if capacity < 1 {
		panic("queue capacity must be at least one")
	}
	return func(o *poolOptions) {
		o.queueCapacity = capacity
	}
}

// WithLogger sets the logger used for pool lifecycle events. The default
// discards everything.
func WithLogger(logger *zap.Logger) PoolOption {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkerInit registers a function that each worker runs on its own
// goroutine, with its own identity, before accepting any task. It is the place
// to allocate per-worker local state. If it fails for any worker,
// [NewWorkerPool] shuts down the workers started so far and returns an error.
func WithWorkerInit(init func(worker int) error) PoolOption {
	return func(o *poolOptions) {
		o.workerInit = init
	}
}

// WithMetrics registers Prometheus collectors for the pool, named with the
// given prefix. They are unregistered again by [WorkerPool.Shutdown].
func WithMetrics(registerer prometheus.Registerer, prefix string) PoolOption {
	return func(o *poolOptions) {
		o.registerer = registerer
		o.metricsPrefix = prefix
	}
}

// NewWorkerPool creates a pool of workers, each started and blocked waiting
// for work before NewWorkerPool returns. A workers value of zero or less
// selects runtime.GOMAXPROCS(0). The result is clamped to [1, MaxWorkers].
//
// Construction fails, leaving nothing running, if metrics registration fails
// or if a [WithWorkerInit] function returns an error. In the latter case the
// returned error wraps both [ErrPoolInit] and the init error.
func NewWorkerPool(workers int, opts ...PoolOption) (*WorkerPool, error) {
	o := poolOptions{
		queueCapacity: DefaultQueueCapacity,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &WorkerPool{
		numWorkers: resolveWorkers(workers),
		logger:     o.logger,
		queue:      boundq.New[TaskFunc](o.queueCapacity),
	}
	p.taskAvailable.L = &p.mu
	p.taskDone.L = &p.mu

	if o.registerer != nil {
		m, err := newPoolMetrics(o.registerer, o.metricsPrefix)
		if isAlreadyRegistered(err) {
			return nil, fmt.Errorf("%w: metrics prefix %q already registered: %w", ErrInvalidConfig, o.metricsPrefix, err)
		}
		if err != nil {
			return nil, fmt.Errorf("registering pool metrics: %w", err)
		}
		p.metrics = m
	}

	// Start workers one at a time so that an init failure leaves a well
	// defined set of previously started workers to tear down.
	started := make(chan error, 1)
	for id := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(id, o.workerInit, started)
		if err := <-started; err != nil {
			p.logger.Error("worker failed to start",
				zap.Int("worker", id),
				zap.Error(err))
			p.Shutdown()
			return nil, fmt.Errorf("%w: worker %d: %w", ErrPoolInit, id, err)
		}
	}

	p.logger.Info("worker pool started",
		zap.Int("workers", p.numWorkers),
		zap.Int("queueCapacity", p.queue.Cap()))
	return p, nil
}

func resolveWorkers(n int) int {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	return max(1, min(n, MaxWorkers))
}

// NumWorkers returns the number of workers in the pool. It returns zero for a
// nil pool.
func (p *WorkerPool) NumWorkers() int {
	if p == nil {
		return 0
	}
	return p.numWorkers
}

// QueueCapacity returns the maximum number of tasks that may be queued.
func (p *WorkerPool) QueueCapacity() int {
	if p == nil || p.queue == nil {
		return 0
	}
	return p.queue.Cap()
}

// Submit enqueues a task for execution on some worker at some later time. It
// never blocks. It returns [ErrQueueFull] if the queue is at capacity and
// [ErrPoolShutdown] if the pool has been shut down or was never created with
// [NewWorkerPool]. An accepted task runs exactly once.
//
// Panics if task is nil.
func (p *WorkerPool) Submit(task TaskFunc) error {
	if task == nil {
		panic("task function must be non-nil")
	}
	if p == nil || p.queue == nil {
		return ErrPoolShutdown
	}

	p.mu.Lock()
	if p.terminal {
		p.mu.Unlock()
		p.reject()
		return ErrPoolShutdown
	}
	if !p.queue.PushBack(task) {
		p.mu.Unlock()
		p.reject()
		return ErrQueueFull
	}
	p.pending.Increment()
	depth := p.queue.Len()
	p.taskAvailable.Signal()
	p.mu.Unlock()

	p.submitted.Add(1)
	if m := p.metrics; m != nil {
		m.submitted.Inc()
		m.queueDepth.Set(float64(depth))
	}
	return nil
}

func (p *WorkerPool) reject() {
	p.rejected.Add(1)
	if m := p.metrics; m != nil {
		m.rejected.Inc()
	}
}

// Wait blocks until every submitted task has finished. It returns immediately
// if nothing is outstanding. Tasks submitted by other goroutines while Wait is
// blocked extend the wait. All memory effects of the finished tasks are
// visible to the caller when Wait returns.
func (p *WorkerPool) Wait() {
	if p == nil || p.queue == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.pending.IsZero() || !p.active.IsZero() {
		p.taskDone.Wait()
	}
}

// Shutdown stops accepting tasks, lets the workers drain whatever is already
// queued, and waits for every worker to exit. In-flight tasks are never
// interrupted. Calling Shutdown more than once, or on a nil or zero-value
// pool, has no additional effect. It must not be called from a task body.
func (p *WorkerPool) Shutdown() {
	if p == nil || p.queue == nil {
		return
	}
	p.shutdownOnce.Do(func() {
		p.mu.Lock()
		p.terminal = true
		p.taskAvailable.Broadcast()
		p.mu.Unlock()

		p.wg.Wait()

		p.mu.Lock()
		p.queue.Clear()
		p.mu.Unlock()

		if p.metrics != nil {
			p.metrics.unregister()
		}
		p.logger.Info("worker pool shut down",
			zap.Int64("completed", p.completed.Load()),
			zap.Int64("rejected", p.rejected.Load()))
	})
}

func (p *WorkerPool) worker(id int, init func(int) error, started chan<- error) {
	defer p.wg.Done()

	if init != nil {
		if err := init(id); err != nil {
			started <- err
			return
		}
	}
	started <- nil

	p.mu.Lock()
	for {
		for p.queue.Len() == 0 && !p.terminal {
			p.taskAvailable.Wait()
		}
		task, ok := p.queue.PopFront()
		if !ok {
			// Terminal and drained.
			p.mu.Unlock()
			return
		}
		p.active.Increment()
		depth := p.queue.Len()
		p.mu.Unlock()

		// The task body always runs without the pool lock held.
		p.execute(id, task, depth)

		p.mu.Lock()
		p.active.Decrement()
		p.pending.Decrement()
		p.taskDone.Broadcast()
	}
}

func (p *WorkerPool) execute(id int, task TaskFunc, depth int) {
	m := p.metrics
	if m == nil {
		task(id)
		p.completed.Add(1)
		return
	}

	m.queueDepth.Set(float64(depth))
	m.active.Inc()
	start := time.Now()
	task(id)
	m.taskDuration.Observe(time.Since(start).Seconds())
	m.active.Dec()
	m.completed.Inc()
	p.completed.Add(1)
}

// PoolStats is a point-in-time snapshot of a pool's counters.
type PoolStats struct {
	Workers       int   `json:"workers"`
	QueueCapacity int   `json:"queue_capacity"`
	QueueDepth    int   `json:"queue_depth"`
	Pending       int64 `json:"pending"`
	Active        int64 `json:"active"`
	Submitted     int64 `json:"submitted"`
	Completed     int64 `json:"completed"`
	Rejected      int64 `json:"rejected"`
	ShuttingDown  bool  `json:"shutting_down"`
}

// Stats returns current pool statistics.
func (p *WorkerPool) Stats() PoolStats {
	if p == nil || p.queue == nil {
		return PoolStats{}
	}
	// pending and active only change under mu, so reading them together
	// here keeps active <= pending in the snapshot.
	p.mu.Lock()
	s := PoolStats{
		Workers:       p.numWorkers,
		QueueCapacity: p.queue.Cap(),
		QueueDepth:    p.queue.Len(),
		Pending:       p.pending.Load(),
		Active:        p.active.Load(),
		ShuttingDown:  p.terminal,
	}
	p.mu.Unlock()
	s.Submitted = p.submitted.Load()
	s.Completed = p.completed.Load()
	s.Rejected = p.rejected.Load()
	return s
}
