// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Ranges shorter than this many indices per worker run on the caller's
// goroutine, where dispatch overhead would dominate.
const sequentialFactor = 2

// ParallelFor calls fn once for every index in [start, end) and returns when
// all calls have finished. Calls may run concurrently and in any order; fn
// must synchronize any access to shared state itself. All memory effects of
// the calls are visible to the caller on return.
//
// Indices are claimed dynamically: ParallelFor submits one task per worker,
// and each task repeatedly claims the next unvisited index from a shared
// atomic cursor until the range is exhausted. Uneven per-index cost therefore
// balances itself, and scheduling overhead stays proportional to the number of
// workers rather than the number of indices.
//
// If the pool has at most one worker, or the range is short relative to the
// worker count, fn runs sequentially on the calling goroutine with worker
// identity [CallerWorker]. The same happens for any share of the work the
// pool refuses (because its queue is full or it has been shut down), so every
// index is still visited exactly once.
//
// Panics if fn is nil.
func ParallelFor(p *WorkerPool, start, end int, fn IndexFunc) {
	if fn == nil {
		panic("index function must be non-nil")
	}
	if end <= start {
		return
	}

	// Work in offsets from start so that neither the length nor the cursor
	// can overflow, however close the range is to the limits of int.
	n := uint64(end) - uint64(start)

	workers := p.NumWorkers()
	if workers <= 1 || n < uint64(workers*sequentialFactor) {
		for i := start; i < end; i++ {
			fn(CallerWorker, i)
		}
		return
	}

	var cursor atomic.Uint64
	claim := func(worker int) {
		for {
			k := cursor.Add(1) - 1
			if k >= n {
				return
			}
			fn(worker, start+int(k))
		}
	}
	dispatch(p, workers, claim)
}

// ParallelProcess calls fn once for every element of items, passing a pointer
// to the element in place, and returns when all calls have finished. It uses
// the same dynamic claiming strategy as [ParallelFor] and offers the same
// guarantees.
//
// Panics if fn is nil.
func ParallelProcess[T any](p *WorkerPool, items []T, fn ItemFunc[T]) {
	if fn == nil {
		panic("item function must be non-nil")
	}
	ParallelFor(p, 0, len(items), func(worker, index int) {
		fn(worker, index, &items[index])
	})
}

// dispatch submits one claim loop per worker and waits for all of them. The
// barrier is private to this call, so concurrent partitioned operations on the
// same pool do not wait on each other's tasks.
func dispatch(p *WorkerPool, tasks int, claim func(worker int)) {
	var barrier sync.WaitGroup
	for n := range tasks {
		barrier.Add(1)
		err := p.Submit(func(worker int) {
			defer barrier.Done()
			claim(worker)
		})
		if err != nil {
			barrier.Done()
			p.logger.Debug("partition running remainder on caller",
				zap.Int("submitted", n),
				zap.Int("requested", tasks),
				zap.Error(err))
			claim(CallerWorker)
			break
		}
	}
	barrier.Wait()
}
