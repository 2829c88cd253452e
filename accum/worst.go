// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package accum

import (
	"cmp"
	"slices"

	"github.com/addrummond/heap"
)

// A Sample is a labelled value retained by [Worst].
type Sample struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

func (a *Sample) Cmp(b *Sample) int {
	if c := cmp.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	return cmp.Compare(a.Label, b.Label)
}

// Worst retains the K largest samples offered to it. The smallest retained
// sample sits at the top of a min-heap, so each offer costs O(log K) and the
// memory used never exceeds K samples.
//
// Unlike [Summary], Worst is a reference type: copies share state.
type Worst struct {
	k        int
	n        int
	retained heap.Heap[Sample, heap.Min]
}

// NewWorst returns a tracker for the k largest samples.
//
// Panics if k is less than one.
func NewWorst(k int) *Worst {
	if k < 1 {
		panic("worst-case capacity must be at least one")
	}
	return &Worst{k: k}
}

// Add offers a sample and reports whether it was retained.
func (w *Worst) Add(label string, value float64) bool {
	s := Sample{Label: label, Value: value}
	if w.n < w.k {
		heap.PushOrderable(&w.retained, s)
		w.n++
		return true
	}
	least, _ := heap.Peek(&w.retained)
	if s.Cmp(&least) <= 0 {
		return false
	}
	heap.PopOrderable(&w.retained)
	heap.PushOrderable(&w.retained, s)
	return true
}

// Len returns the number of retained samples, at most K.
func (w *Worst) Len() int {
	return w.n
}

// Values returns the retained samples, largest first.
func (w *Worst) Values() []Sample {
	out := make([]Sample, 0, w.n)
	drained := w.retained
	w.retained = heap.Heap[Sample, heap.Min]{}
	for {
		s, ok := heap.PopOrderable(&drained)
		if !ok {
			break
		}
		out = append(out, s)
	}
	for _, s := range out {
		heap.PushOrderable(&w.retained, s)
	}
	slices.Reverse(out)
	return out
}

// Reset discards every retained sample.
func (w *Worst) Reset() {
	w.retained = heap.Heap[Sample, heap.Min]{}
	w.n = 0
}
