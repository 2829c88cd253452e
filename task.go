// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

// A TaskFunc is one unit of work submitted to a [WorkerPool]. It receives the
// identity of the worker executing it, a value in [0, NumWorkers), which task
// bodies may use to index per-worker scratch state without further
// synchronization. Any other inputs are expected to be captured by closure.
//
// Task bodies run on pool goroutines and must therefore be thread-safe,
// including their access to captured variables. A task that panics terminates
// the program as per [Handling panics]; recover inside the task and record the
// failure if that is not acceptable.
//
// [Handling panics]: https://go.dev/ref/spec#Handling_panics
type TaskFunc = func(worker int)

// CallerWorker is the worker identity passed to an [IndexFunc] or [ItemFunc]
// when it runs on the calling goroutine instead of a pool worker.
const CallerWorker = -1

// An IndexFunc is applied to each index of a [ParallelFor] range.
type IndexFunc = func(worker, index int)

// An ItemFunc is applied to each element of a [ParallelProcess] slice. The
// item pointer refers to the element in place.
type ItemFunc[T any] = func(worker, index int, item *T)
