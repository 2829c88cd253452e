// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload_test

import (
	"errors"
	"fmt"

	"github.com/petenewcomb/offload-go"
)

// Shows that a full queue rejects a submission immediately instead of
// blocking, and accepts it again once the pool has caught up.
func Example_queueFull() {
	pool, err := offload.NewWorkerPool(1, offload.WithQueueCapacity(4))
	if err != nil {
		panic(err)
	}
	defer pool.Shutdown()

	// Keep the only worker busy so that submissions pile up in the queue.
	release := make(chan struct{})
	busy := make(chan struct{})
	_ = pool.Submit(func(int) {
		close(busy)
		<-release
	})
	<-busy

	for i := range 5 {
		err := pool.Submit(func(int) {})
		fmt.Printf("submit %d: %v\n", i+1, err)
	}

	close(release)
	pool.Wait()

	err = pool.Submit(func(int) {})
	fmt.Println("after wait:", err, errors.Is(err, offload.ErrQueueFull))
	pool.Wait()
	// Output:
	// submit 1: <nil>
	// submit 2: <nil>
	// submit 3: <nil>
	// submit 4: <nil>
	// submit 5: worker pool queue full
	// after wait: <nil> false
}
