// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// JobState is the lifecycle state of a [BackgroundJob] slot.
type JobState int32

const (
	// JobIdle means no job has been launched, or the last outcome was reaped.
	JobIdle JobState = iota
	// JobRunning means the job goroutine is executing the job body.
	JobRunning
	// JobCompleted means the body returned successfully without being
	// cancelled. The result is available until the outcome is reaped.
	JobCompleted
	// JobCancelled means cancellation was requested, either through
	// [BackgroundJob.RequestCancel] or the launch context, before the body
	// returned. Any result the body produced was discarded.
	JobCancelled
	// JobFailed means the body returned an error or panicked.
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobCancelled:
		return "cancelled"
	case JobFailed:
		return "failed"
	default:
		return fmt.Sprintf("JobState(%d)", int32(s))
	}
}

// Terminal reports whether s is an outcome awaiting [BackgroundJob.Reap].
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobCancelled || s == JobFailed
}

// JobStatus is a snapshot of a [BackgroundJob] slot. Result is only set in
// [JobCompleted] and Err is only set in [JobFailed].
type JobStatus[R any] struct {
	State  JobState
	Done   int
	Total  int
	Result R
	Err    error
}

// Progress is shared between a running job body and the goroutine polling it.
// The body reports how far it has come with [Progress.Report] and checks
// [Progress.Cancelled] between logical units of work. All methods are safe for
// concurrent use.
type Progress struct {
	done      atomic.Int64
	total     atomic.Int64
	cancelled atomic.Bool
}

// Report publishes the number of units done out of total.
func (p *Progress) Report(done, total int) {
	p.total.Store(int64(total))
	p.done.Store(int64(done))
}

// Cancelled reports whether the job has been asked to stop. A body that sees
// true should return promptly; whatever it returns is discarded.
func (p *Progress) Cancelled() bool {
	return p.cancelled.Load()
}

// Load returns the most recently reported progress.
func (p *Progress) Load() (done, total int) {
	return int(p.done.Load()), int(p.total.Load())
}

// A JobFunc is the body of a background job. It runs on a dedicated goroutine
// and receives its own copy of the launch parameters. The context is cancelled
// when cancellation is requested, in addition to progress.Cancelled becoming
// true, so bodies may use either mechanism.
type JobFunc[P, R any] = func(ctx context.Context, params P, progress *Progress) (R, error)

// JobOption configures a [BackgroundJob].
type JobOption func(*jobOptions)

type jobOptions struct {
	name   string
	logger *zap.Logger
}

// WithJobName sets the name used to identify the job in log entries.
func WithJobName(name string) JobOption {
	return func(o *jobOptions) {
		o.name = name
	}
}

// WithJobLogger sets the logger used for job lifecycle events. The default
// discards everything.
func WithJobLogger(logger *zap.Logger) JobOption {
	return func(o *jobOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// BackgroundJob is a slot that runs at most one long computation at a time on
// its own goroutine, never on a [WorkerPool] worker, so that it cannot starve
// short pool tasks. The owning goroutine launches the job, polls it once per
// iteration of its loop, and reaps the outcome once it is terminal:
//
//	idle --Launch--> running --body returns--> completed | cancelled | failed --Reap--> idle
//
// Parameters go in by value at [BackgroundJob.Launch] and results come out by
// value from [BackgroundJob.Poll] and [BackgroundJob.Reap]. Nothing else is
// shared with the body. Callers passing parameters that contain slices, maps,
// or pointers must pass copies they will not mutate while the job runs.
//
// Any number of independent slots may exist. All methods are safe for
// concurrent use.
type BackgroundJob[P, R any] struct {
	fn     JobFunc[P, R]
	name   string
	logger *zap.Logger

	mu       sync.Mutex
	state    JobState
	progress *Progress
	cancel   context.CancelFunc
	finished chan struct{}
	result   R
	err      error
}

// NewBackgroundJob creates an idle job slot that runs fn when launched.
//
// Panics if fn is nil.
func NewBackgroundJob[P, R any](fn JobFunc[P, R], opts ...JobOption) *BackgroundJob[P, R] {
	if fn == nil {
		panic("job function must be non-nil")
	}
	o := jobOptions{
		name:   "background",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &BackgroundJob[P, R]{
		fn:     fn,
		name:   o.name,
		logger: o.logger,
	}
}

// Launch starts the job body on a new goroutine with the given parameters and
// returns without waiting for it. The body's context is derived from ctx, so
// cancelling ctx has the same effect as [BackgroundJob.RequestCancel].
//
// Launch fails with [ErrJobBusy] if a job is already running and with
// [ErrJobNotReaped] if a finished job's outcome has not yet been collected by
// [BackgroundJob.Reap].
func (j *BackgroundJob[P, R]) Launch(ctx context.Context, params P) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.state == JobRunning:
		return ErrJobBusy
	case j.state.Terminal():
		return ErrJobNotReaped
	}

	ctx, cancel := context.WithCancel(ctx)
	progress := &Progress{}
	finished := make(chan struct{})

	j.state = JobRunning
	j.progress = progress
	j.cancel = cancel
	j.finished = finished
	j.err = nil
	var zero R
	j.result = zero

	j.logger.Debug("background job launched", zap.String("job", j.name))
	go j.run(ctx, params, progress, finished)
	return nil
}

func (j *BackgroundJob[P, R]) run(ctx context.Context, params P, progress *Progress, finished chan<- struct{}) {
	defer close(finished)

	// Cancellation of the launch context counts as a cancel request.
	stop := context.AfterFunc(ctx, func() {
		progress.cancelled.Store(true)
	})

	start := time.Now()
	result, err := j.invoke(ctx, params, progress)
	elapsed := time.Since(start)

	stop()
	cancelled := progress.Cancelled() || ctx.Err() != nil

	j.mu.Lock()
	switch {
	case cancelled:
		j.state = JobCancelled
	case err != nil:
		j.state = JobFailed
		j.err = err
	default:
		j.state = JobCompleted
		j.result = result
	}
	state := j.state
	j.cancel()
	j.mu.Unlock()

	fields := []zap.Field{
		zap.String("job", j.name),
		zap.Stringer("state", state),
		zap.Duration("duration", elapsed),
	}
	switch {
	case state == JobFailed:
		j.logger.Warn("background job failed", append(fields, zap.Error(err))...)
	case err != nil && !errors.Is(err, context.Canceled):
		j.logger.Warn("background job error discarded after cancellation", append(fields, zap.Error(err))...)
	default:
		j.logger.Debug("background job finished", fields...)
	}
}

func (j *BackgroundJob[P, R]) invoke(ctx context.Context, params P, progress *Progress) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			result = zero
			err = fmt.Errorf("%w: %v", ErrJobPanic, r)
		}
	}()
	return j.fn(ctx, params, progress)
}

// RequestCancel asks a running job to stop. It never blocks; the job notices
// at its next cancellation check and the slot becomes [JobCancelled] once the
// body returns. It has no effect if no job is running.
func (j *BackgroundJob[P, R]) RequestCancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != JobRunning {
		return
	}
	j.progress.cancelled.Store(true)
	j.cancel()
}

// Poll returns a snapshot of the slot without blocking.
func (j *BackgroundJob[P, R]) Poll() JobStatus[R] {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.statusLocked()
}

func (j *BackgroundJob[P, R]) statusLocked() JobStatus[R] {
	s := JobStatus[R]{State: j.state}
	if j.progress != nil {
		s.Done, s.Total = j.progress.Load()
	}
	switch j.state {
	case JobCompleted:
		s.Result = j.result
	case JobFailed:
		s.Err = j.err
	}
	return s
}

// Reap collects a terminal outcome. If the job has finished, Reap waits for
// its goroutine to exit, returns the final status and true, and leaves the
// slot idle and ready for another [BackgroundJob.Launch]. Otherwise it returns
// the current status and false.
func (j *BackgroundJob[P, R]) Reap() (JobStatus[R], bool) {
	j.mu.Lock()
	status := j.statusLocked()
	if !status.State.Terminal() {
		j.mu.Unlock()
		return status, false
	}
	finished := j.finished
	j.state = JobIdle
	j.progress = nil
	j.cancel = nil
	j.finished = nil
	j.err = nil
	var zero R
	j.result = zero
	j.mu.Unlock()

	<-finished
	j.logger.Debug("background job reaped",
		zap.String("job", j.name),
		zap.Stringer("state", status.State))
	return status, true
}

// Await blocks until the job reaches a terminal state or ctx is done, and
// returns the status at that point without reaping it. It fails with
// [ErrJobIdle] if nothing has been launched, and with ctx's error if ctx ends
// first.
func (j *BackgroundJob[P, R]) Await(ctx context.Context) (JobStatus[R], error) {
	j.mu.Lock()
	if j.state == JobIdle {
		status := j.statusLocked()
		j.mu.Unlock()
		return status, ErrJobIdle
	}
	finished := j.finished
	j.mu.Unlock()

	select {
	case <-finished:
		return j.Poll(), nil
	case <-ctx.Done():
		return j.Poll(), ctx.Err()
	}
}
