// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

// DefaultStepBudget is the number of iterations [Stepper.Step] runs when
// given a non-positive budget.
const DefaultStepBudget = 5

// A StepFunc performs one iteration of an incremental analysis, folding its
// contribution into the accumulator and returning the new value. Iterations are
// numbered from zero. A non-nil error stops the analysis.
//
// For budgeted and unbudgeted runs to agree, a StepFunc must depend only on
// its arguments. In particular any randomness should be seeded from the
// iteration number.
type StepFunc[A any] = func(iteration int, acc A) (A, error)

// Stepper spreads a long iterative analysis across many calls so that each
// call fits in a fixed slice of an interactive loop's time. It runs entirely
// on the calling goroutine and is not safe for concurrent use.
//
// However the work is sliced, the accumulator after the last iteration is the
// same as if every iteration had run in one call.
type Stepper[A any] struct {
	step    StepFunc[A]
	initial A
	acc     A
	current int
	total   int
	done    bool
	err     error
}

// NewStepper returns a stepper that will run total iterations of step,
// starting from the initial accumulator. A stepper with a total of zero is
// done immediately.
//
// Panics if step is nil or total is negative.
func NewStepper[A any](total int, initial A, step StepFunc[A]) *Stepper[A] {
	if step == nil {
		panic("step function must be non-nil")
	}
	s := &Stepper[A]{
		step:    step,
		initial: initial,
	}
	s.Reset(total)
	return s
}

// Reset rewinds the stepper to iteration zero with a new total, restoring the
// initial accumulator and clearing any error.
//
// Panics if total is negative.
func (s *Stepper[A]) Reset(total int) {
	if total < 0 {
		panic("step total must be non-negative")
	}
	s.acc = s.initial
	s.current = 0
	s.total = total
	s.done = total == 0
	s.err = nil
}

// Step runs up to budget iterations, or [DefaultStepBudget] if budget is not
// positive, and reports whether the analysis is done. It never runs past the
// total, and once done it does nothing but return true.
func (s *Stepper[A]) Step(budget int) bool {
	if s.done {
		return true
	}
	if budget <= 0 {
		budget = DefaultStepBudget
	}
	end := s.total
	if budget < s.total-s.current {
		end = s.current + budget
	}
	for s.current < end {
		acc, err := s.step(s.current, s.acc)
		if err != nil {
			s.err = err
			s.done = true
			return true
		}
		s.acc = acc
		s.current++
	}
	s.done = s.current == s.total
	return s.done
}

// Run finishes all remaining iterations in one call and reports whether they
// all succeeded.
func (s *Stepper[A]) Run() bool {
	for !s.Step(s.total - s.current) {
	}
	return s.err == nil
}

// Progress returns the number of iterations completed and the total.
func (s *Stepper[A]) Progress() (current, total int) {
	return s.current, s.total
}

// Done reports whether the stepper has finished, successfully or not.
func (s *Stepper[A]) Done() bool {
	return s.done
}

// Accumulator returns the accumulator as of the last completed iteration.
func (s *Stepper[A]) Accumulator() A {
	return s.acc
}

// Err returns the error that stopped the stepper, if any.
func (s *Stepper[A]) Err() error {
	return s.err
}
