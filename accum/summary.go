// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package accum provides small value-type accumulators that fold cleanly
// through an incremental analysis, one sample at a time.
package accum

import "math"

// Summary tracks the count, sum, minimum, and maximum of a stream of samples.
// The zero value is an empty summary. Methods return updated copies, so a
// Summary can be threaded through a fold without aliasing.
type Summary struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Add returns s with x folded in.
func (s Summary) Add(x float64) Summary {
	if s.Count == 0 {
		return Summary{Count: 1, Sum: x, Min: x, Max: x}
	}
	s.Count++
	s.Sum += x
	s.Min = math.Min(s.Min, x)
	s.Max = math.Max(s.Max, x)
	return s
}

// Merge returns the summary of the samples in both s and o.
func (s Summary) Merge(o Summary) Summary {
	switch {
	case o.Count == 0:
		return s
	case s.Count == 0:
		return o
	}
	return Summary{
		Count: s.Count + o.Count,
		Sum:   s.Sum + o.Sum,
		Min:   math.Min(s.Min, o.Min),
		Max:   math.Max(s.Max, o.Max),
	}
}

// Mean returns the arithmetic mean, or NaN for an empty summary.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.Sum / float64(s.Count)
}
