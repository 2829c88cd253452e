// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

type constError string

func (e constError) Error() string {
	return string(e)
}

// Pool errors.
const (
	ErrQueueFull    = constError("worker pool queue full")
	ErrPoolShutdown = constError("worker pool shut down")
	ErrPoolInit     = constError("worker pool initialization failed")
)

// Background job errors.
const (
	ErrJobBusy      = constError("background job already running")
	ErrJobNotReaped = constError("background job outcome not yet reaped")
	ErrJobIdle      = constError("no background job launched")
	ErrJobPanic     = constError("background job panicked")
)

const ErrInvalidConfig = constError("invalid configuration")
