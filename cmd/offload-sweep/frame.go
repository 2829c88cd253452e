// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"errors"
	"time"

	"github.com/petenewcomb/offload-go"
	"github.com/petenewcomb/offload-go/accum"
	"github.com/petenewcomb/offload-go/otoffload"
	"go.uber.org/zap"
)

type demoOptions struct {
	Nodes       int
	SweepPoints int
	Trials      int
	StepBudget  int
	// ResweepEvery is the number of frames between sweeps of the next
	// candidate resistor value.
	ResweepEvery int
	WorstK       int
	Seed         uint64
}

// demo holds the state of the interactive loop. Every method runs on the
// loop's goroutine; only the pool tasks and the sweep job run elsewhere.
type demo struct {
	opts   demoOptions
	logger *zap.Logger
	pool   *offload.WorkerPool

	nodes []node
	frame int

	sweeper   *offload.BackgroundJob[sweepParams, sweepResult]
	resistors []float64
	nextR     int
	lastSweep sweepResult

	trial   toleranceTrial
	worst   *accum.Worst
	stepper *offload.Stepper[accum.Summary]
}

const (
	nominalR = 10e3
	nominalC = 100e-9
	nodeTau  = 50 * time.Millisecond
)

func newDemo(opts demoOptions, logger *zap.Logger, pool *offload.WorkerPool) *demo {
	d := &demo{
		opts:      opts,
		logger:    logger,
		pool:      pool,
		nodes:     make([]node, opts.Nodes),
		resistors: []float64{1e3, 2.2e3, 4.7e3, 10e3, 22e3, 47e3},
		worst:     accum.NewWorst(opts.WorstK),
	}
	for i := range d.nodes {
		d.nodes[i].Target = float64(i%10) / 10
	}

	d.sweeper = offload.NewBackgroundJob(
		otoffload.InstrumentedJob("rc-sweep", logger, sweep),
		offload.WithJobName("rc-sweep"),
		offload.WithJobLogger(logger),
	)

	d.trial = toleranceTrial{
		R:          nominalR,
		C:          nominalC,
		RTolerance: 0.05,
		CTolerance: 0.10,
		Seed:       opts.Seed,
		worst:      d.worst,
	}
	d.stepper = offload.NewStepper(opts.Trials, accum.Summary{}, func(iteration int, acc accum.Summary) (accum.Summary, error) {
		return d.trial.step(iteration, acc)
	})
	return d
}

// step advances the demo by one frame of duration dt.
func (d *demo) step(ctx context.Context, dt time.Duration) {
	d.frame++

	// Every node must be updated before the frame ends.
	seconds, tau := dt.Seconds(), nodeTau.Seconds()
	offload.ParallelProcess(d.pool, d.nodes, func(worker, index int, n *node) {
		n.relax(seconds, tau)
	})

	d.pollSweep(ctx)

	// A few trials per frame, on this goroutine.
	if !d.stepper.Done() {
		if d.stepper.Step(d.opts.StepBudget) {
			d.reportTolerance()
		}
	}
}

func (d *demo) pollSweep(ctx context.Context) {
	status, reaped := d.sweeper.Reap()
	if reaped {
		switch status.State {
		case offload.JobCompleted:
			d.lastSweep = status.Result
			d.logger.Info("sweep completed",
				zap.Int("frame", d.frame),
				zap.Float64("r", status.Result.R),
				zap.Float64("cutoffHz", status.Result.CutoffHz),
				zap.Int("points", len(status.Result.Freqs)))
			d.restartTolerance(status.Result.R)
		case offload.JobCancelled:
			d.logger.Info("sweep cancelled", zap.Int("frame", d.frame))
		case offload.JobFailed:
			d.logger.Warn("sweep failed", zap.Int("frame", d.frame), zap.Error(status.Err))
		}
	}
	if status.State == offload.JobRunning || d.opts.ResweepEvery <= 0 {
		return
	}
	if (d.frame-1)%d.opts.ResweepEvery != 0 {
		return
	}

	r := d.resistors[d.nextR%len(d.resistors)]
	d.nextR++
	err := d.sweeper.Launch(ctx, sweepParams{
		R:      r,
		C:      nominalC,
		FMin:   1,
		FMax:   1e6,
		Points: d.opts.SweepPoints,
	})
	if err != nil {
		d.logger.Warn("sweep not launched", zap.Error(err))
	}
}

func (d *demo) reportTolerance() {
	if err := d.stepper.Err(); err != nil {
		d.logger.Error("tolerance analysis failed", zap.Error(err))
		return
	}
	s := d.stepper.Accumulator()
	fields := []zap.Field{
		zap.Int("frame", d.frame),
		zap.Int("trials", s.Count),
		zap.Float64("meanCutoffHz", s.Mean()),
		zap.Float64("minCutoffHz", s.Min),
		zap.Float64("maxCutoffHz", s.Max),
	}
	if w := d.worst.Values(); len(w) > 0 {
		fields = append(fields, zap.String("worstTrial", w[0].Label))
	}
	d.logger.Info("tolerance analysis completed", fields...)
}

// restartTolerance begins a fresh tolerance analysis around resistance r.
func (d *demo) restartTolerance(r float64) {
	d.trial.R = r
	d.worst.Reset()
	d.stepper.Reset(d.opts.Trials)
}

// stop cancels any running sweep and waits for it to wind down.
func (d *demo) stop() {
	d.sweeper.RequestCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := d.sweeper.Await(ctx); err != nil && !errors.Is(err, offload.ErrJobIdle) {
		d.logger.Warn("sweep did not stop", zap.Error(err))
		return
	}
	d.sweeper.Reap()
}
