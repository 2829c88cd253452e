// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// Counter is an atomic, non-negative count of in-flight work. The zero value
// is ready to use. Decrementing below zero indicates a bookkeeping bug and
// panics.
type Counter struct {
	v atomic.Int64
}

// Increment adds one to the counter and returns the new value.
func (c *Counter) Increment() int64 {
	return c.v.Add(1)
}

// Decrement subtracts one from the counter and returns the new value.
func (c *Counter) Decrement() int64 {
	newValue := c.v.Add(-1)
	if newValue < 0 {
		panic("counter underflow")
	}
	return newValue
}

// Load returns the current value.
func (c *Counter) Load() int64 {
	return c.v.Load()
}

// IsZero reports whether nothing is currently counted.
func (c *Counter) IsZero() bool {
	return c.v.Load() == 0
}
