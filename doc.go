// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package offload moves expensive, repeatable numeric work off a
// single-threaded interactive loop while keeping that loop responsive. It
// provides three mechanisms that an application's main loop owns and drives:
//
//   - A [WorkerPool] with a fixed number of workers draining a bounded task
//     queue. [ParallelFor] and [ParallelProcess] split an index range or a
//     slice across the pool using a shared atomic cursor, so uneven per-item
//     cost balances itself without a separate scheduling pass. Both block
//     the caller until every index has been visited exactly once.
//
//   - A [BackgroundJob] slot that runs one long computation (a frequency
//     sweep, say) on its own goroutine. The loop launches it, polls it each
//     frame with [BackgroundJob.Poll], may request cooperative cancellation,
//     and reaps the outcome before launching again. Parameters go in and
//     results come out by value, so the job never touches state the loop is
//     reading.
//
//   - A [Stepper] that advances a large iterative analysis (Monte Carlo
//     resampling, for instance) a bounded number of iterations per call on
//     the caller's own goroutine, capping the latency it adds to any one
//     frame. Its accumulated result is identical to running all iterations
//     in one go.
//
// Task bodies run on pool goroutines and, as for any goroutine, a panic in
// one terminates the program. Background job bodies are the exception: a
// panic there is recovered and reported as a failed outcome.
package offload
