// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/petenewcomb/offload-go"
	"github.com/petenewcomb/offload-go/accum"
)

// rcMagnitude returns the gain |H(f)| of a first-order RC low-pass filter.
func rcMagnitude(r, c, f float64) float64 {
	wrc := 2 * math.Pi * f * r * c
	return 1 / math.Sqrt(1+wrc*wrc)
}

// rcCutoff returns the -3 dB frequency of an RC low-pass filter.
func rcCutoff(r, c float64) float64 {
	return 1 / (2 * math.Pi * r * c)
}

// logSpace returns n points spaced evenly on a log scale from lo to hi
// inclusive.
func logSpace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	ratio := math.Log(hi / lo)
	for i := range out {
		out[i] = lo * math.Exp(ratio*float64(i)/float64(n-1))
	}
	return out
}

type sweepParams struct {
	R, C       float64
	FMin, FMax float64
	Points     int
}

func (p sweepParams) validate() error {
	switch {
	case p.R <= 0 || p.C <= 0:
		return fmt.Errorf("component values must be positive: R=%g C=%g", p.R, p.C)
	case p.FMin <= 0 || p.FMax < p.FMin:
		return fmt.Errorf("invalid frequency range [%g, %g]", p.FMin, p.FMax)
	case p.Points < 1:
		return fmt.Errorf("sweep needs at least one point, got %d", p.Points)
	}
	return nil
}

type sweepResult struct {
	R     float64
	Freqs []float64
	Gains []float64
	// CutoffHz is the first swept frequency at or below -3 dB, or zero if
	// the sweep never got there.
	CutoffHz float64
}

// sweep is a background job body computing the frequency response of an RC
// low-pass filter. It checks for cancellation between points.
func sweep(ctx context.Context, p sweepParams, progress *offload.Progress) (sweepResult, error) {
	if err := p.validate(); err != nil {
		return sweepResult{}, err
	}
	freqs := logSpace(p.FMin, p.FMax, p.Points)
	res := sweepResult{
		R:     p.R,
		Freqs: freqs,
		Gains: make([]float64, len(freqs)),
	}
	threshold := 1 / math.Sqrt2
	for i, f := range freqs {
		if progress.Cancelled() {
			return sweepResult{}, ctx.Err()
		}
		g := rcMagnitude(p.R, p.C, f)
		res.Gains[i] = g
		if res.CutoffHz == 0 && g <= threshold {
			res.CutoffHz = f
		}
		progress.Report(i+1, len(freqs))
	}
	return res, nil
}

// toleranceTrial describes a Monte Carlo analysis of how component
// tolerances spread an RC filter's cutoff frequency.
type toleranceTrial struct {
	R, C       float64
	RTolerance float64
	CTolerance float64
	Seed       uint64
	// worst, if set, is offered every trial's cutoff. It is not part of the
	// accumulator and must be reset alongside the stepper.
	worst *accum.Worst
}

// step runs one trial. Each trial draws from its own generator seeded by the
// iteration number so that results do not depend on how trials are sliced
// across frames.
func (tt toleranceTrial) step(iteration int, acc accum.Summary) (accum.Summary, error) {
	rng := rand.New(rand.NewPCG(tt.Seed, uint64(iteration)))
	r := tt.R * (1 + tt.RTolerance*(2*rng.Float64()-1))
	c := tt.C * (1 + tt.CTolerance*(2*rng.Float64()-1))
	fc := rcCutoff(r, c)
	if tt.worst != nil {
		tt.worst.Add(fmt.Sprintf("trial-%d", iteration), fc)
	}
	return acc.Add(fc), nil
}

// node is one element of the simulated array updated every frame.
type node struct {
	Voltage float64
	Target  float64
}

// relax moves the node's voltage toward its target as if through an RC
// network with time constant tau.
func (n *node) relax(dt, tau float64) {
	n.Voltage += (n.Target - n.Voltage) * (1 - math.Exp(-dt/tau))
}
