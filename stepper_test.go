// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload_test

import (
	"errors"
	"math"
	"testing"

	"github.com/petenewcomb/offload-go"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sumOfSquares(iteration int, acc int) (int, error) {
	return acc + iteration*iteration, nil
}

func TestStepperNilPanic(t *testing.T) {
	chk := require.New(t)
	chk.PanicsWithValue("step function must be non-nil", func() {
		offload.NewStepper[int](1, 0, nil)
	})
	chk.PanicsWithValue("step total must be non-negative", func() {
		offload.NewStepper(-1, 0, sumOfSquares)
	})
}

func TestStepperBudget(t *testing.T) {
	chk := require.New(t)
	var calls []int
	s := offload.NewStepper(12, 0, func(iteration int, acc int) (int, error) {
		calls = append(calls, iteration)
		return acc + 1, nil
	})
	chk.False(s.Done())

	// Non-positive budgets use the default.
	chk.False(s.Step(0))
	current, total := s.Progress()
	chk.Equal(offload.DefaultStepBudget, current)
	chk.Equal(12, total)

	chk.False(s.Step(4))
	current, _ = s.Progress()
	chk.Equal(9, current)

	// Never runs past the total.
	chk.True(s.Step(100))
	current, _ = s.Progress()
	chk.Equal(12, current)
	chk.Equal(12, s.Accumulator())
	chk.Len(calls, 12)
	for i, c := range calls {
		chk.Equal(i, c)
	}

	// No-op once done
	chk.True(s.Step(5))
	chk.Len(calls, 12)
	chk.True(s.Done())
	chk.NoError(s.Err())
}

func TestStepperHugeBudgetAfterProgress(t *testing.T) {
	chk := require.New(t)
	s := offload.NewStepper(10, 0, sumOfSquares)
	chk.False(s.Step(1))
	chk.True(s.Step(math.MaxInt))
	current, total := s.Progress()
	chk.Equal(10, current)
	chk.Equal(10, total)
	chk.Equal(285, s.Accumulator())
}

func TestStepperZeroTotal(t *testing.T) {
	chk := require.New(t)
	s := offload.NewStepper(0, 7, func(int, int) (int, error) {
		panic("must not be called")
	})
	chk.True(s.Done())
	chk.True(s.Step(10))
	chk.True(s.Run())
	chk.Equal(7, s.Accumulator())
}

func TestStepperReset(t *testing.T) {
	chk := require.New(t)
	s := offload.NewStepper(10, 0, sumOfSquares)
	chk.True(s.Run())
	chk.Equal(285, s.Accumulator())

	s.Reset(3)
	chk.False(s.Done())
	chk.Equal(0, s.Accumulator())
	current, total := s.Progress()
	chk.Zero(current)
	chk.Equal(3, total)
	chk.True(s.Step(3))
	chk.Equal(5, s.Accumulator())

	s.Reset(0)
	chk.True(s.Done())
}

func TestStepperError(t *testing.T) {
	chk := require.New(t)
	bad := errors.New("singular matrix")
	s := offload.NewStepper(10, 0, func(iteration int, acc int) (int, error) {
		if iteration == 6 {
			return -1, bad
		}
		return acc + 1, nil
	})
	chk.False(s.Step(5))
	chk.True(s.Step(5))
	chk.ErrorIs(s.Err(), bad)
	current, _ := s.Progress()
	chk.Equal(6, current)
	// The failed iteration contributes nothing.
	chk.Equal(6, s.Accumulator())
	chk.True(s.Step(5))

	s.Reset(10)
	chk.NoError(s.Err())
	chk.False(s.Run())
	chk.ErrorIs(s.Err(), bad)
}

// However the iterations are sliced into budgets, the stepper must end with
// the same accumulator as an unbudgeted run, and must never overshoot.
func TestStepperBudgetEquivalenceWithRapid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 300).Draw(t, "total")
		mix := rapid.Uint64().Draw(t, "mix")
		step := func(iteration int, acc uint64) (uint64, error) {
			// Order-sensitive fold, so reordering or repeats would show.
			return acc*31 + uint64(iteration) ^ mix, nil
		}

		reference := offload.NewStepper(total, 1, step)
		require.True(t, reference.Run())

		s := offload.NewStepper(total, 1, step)
		for !s.Done() {
			budget := rapid.IntRange(-2, 20).Draw(t, "budget")
			before, _ := s.Progress()
			done := s.Step(budget)
			after, _ := s.Progress()
			require.LessOrEqual(t, after, total)
			if budget <= 0 {
				budget = offload.DefaultStepBudget
			}
			require.Equal(t, min(before+budget, total), after)
			require.Equal(t, after == total, done)
		}
		require.Equal(t, reference.Accumulator(), s.Accumulator())
	})
}
