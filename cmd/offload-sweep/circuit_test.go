// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/petenewcomb/offload-go"
	"github.com/petenewcomb/offload-go/accum"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func TestRCMagnitudeAtCutoff(t *testing.T) {
	chk := require.New(t)
	r, c := 10e3, 100e-9
	fc := rcCutoff(r, c)
	chk.InDelta(159.15494, fc, 1e-4)
	chk.InDelta(1/math.Sqrt2, rcMagnitude(r, c, fc), 1e-12)
	chk.InDelta(1, rcMagnitude(r, c, 0), 1e-12)
	chk.Less(rcMagnitude(r, c, 100*fc), 0.011)
}

func TestLogSpace(t *testing.T) {
	chk := require.New(t)
	pts := logSpace(1, 1000, 4)
	chk.Len(pts, 4)
	for i, want := range []float64{1, 10, 100, 1000} {
		chk.InDelta(want, pts[i], 1e-9)
	}
	chk.Equal([]float64{5}, logSpace(5, 50, 1))
}

func TestSweep(t *testing.T) {
	chk := require.New(t)
	progress := &offload.Progress{}
	res, err := sweep(context.Background(), sweepParams{
		R: 10e3, C: 100e-9, FMin: 1, FMax: 1e5, Points: 501,
	}, progress)
	chk.NoError(err)
	chk.Len(res.Gains, 501)
	chk.InEpsilon(rcCutoff(10e3, 100e-9), res.CutoffHz, 0.03)

	done, total := progress.Load()
	chk.Equal(501, done)
	chk.Equal(501, total)

	_, err = sweep(context.Background(), sweepParams{R: -1, C: 1, FMin: 1, FMax: 2, Points: 2}, progress)
	chk.Error(err)
}

func TestSweepCancelledInBackground(t *testing.T) {
	chk := require.New(t)
	job := offload.NewBackgroundJob(sweep)
	chk.NoError(job.Launch(context.Background(), sweepParams{
		R: 1e3, C: 1e-9, FMin: 1, FMax: 1e9, Points: 2_000_000,
	}))
	job.RequestCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := job.Await(ctx)
	chk.NoError(err)
	chk.Equal(offload.JobCancelled, status.State)
	chk.Empty(status.Result.Gains)
}

// Slicing a tolerance analysis across frames must not change its outcome.
func TestToleranceTrialBudgetInvariance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		trials := rapid.IntRange(0, 200).Draw(t, "trials")
		budget := rapid.IntRange(1, 17).Draw(t, "budget")
		tt := toleranceTrial{R: 1e3, C: 1e-6, RTolerance: 0.05, CTolerance: 0.1, Seed: 42}

		reference := offload.NewStepper(trials, accum.Summary{}, tt.step)
		require.True(t, reference.Run())

		sliced := offload.NewStepper(trials, accum.Summary{}, tt.step)
		for !sliced.Step(budget) {
		}
		require.Equal(t, reference.Accumulator(), sliced.Accumulator())
	})
}

func TestNodeRelax(t *testing.T) {
	chk := require.New(t)
	n := node{Target: 1}
	for range 100 {
		n.relax(0.01, 0.05)
	}
	chk.InDelta(1, n.Voltage, 1e-6)
}

func TestDemoFrames(t *testing.T) {
	chk := require.New(t)
	pool, err := offload.NewWorkerPool(4)
	chk.NoError(err)
	defer pool.Shutdown()

	d := newDemo(demoOptions{
		Nodes:        64,
		SweepPoints:  100,
		Trials:       20,
		StepBudget:   3,
		ResweepEvery: 1000,
		WorstK:       3,
		Seed:         7,
	}, zap.NewNop(), pool)
	defer d.stop()

	ctx := context.Background()
	d.step(ctx, 16*time.Millisecond)
	chk.Equal(1, d.frame)

	// Wait for the first sweep, then let the next frame reap it, which
	// restarts the tolerance analysis around the swept resistor.
	_, err = d.sweeper.Await(ctx)
	chk.NoError(err)
	d.step(ctx, 16*time.Millisecond)
	chk.Equal(1e3, d.lastSweep.R)
	chk.Equal(1e3, d.trial.R)
	chk.Equal(offload.JobIdle, d.sweeper.Poll().State)

	for !d.stepper.Done() {
		d.step(ctx, 16*time.Millisecond)
	}
	current, total := d.stepper.Progress()
	chk.Equal(20, current)
	chk.Equal(20, total)
	chk.Equal(20, d.stepper.Accumulator().Count)
	chk.Equal(3, d.worst.Len())
	chk.Greater(d.nodes[1].Voltage, 0.0)
}
