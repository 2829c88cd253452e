// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Command offload-sweep drives a simulated interactive loop that exercises all
// three offload mechanisms each frame: a parallel update of a node array on
// the worker pool, a cancellable frequency sweep in a background job, and a
// Monte Carlo tolerance analysis advanced a few trials at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/petenewcomb/offload-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "offload-sweep:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("offload-sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML or JSON configuration file")
	workers := fs.Int("workers", -1, "worker pool size, overriding the configuration (0 = GOMAXPROCS)")
	fps := fs.Int("fps", 60, "frames per second")
	frames := fs.Int("frames", 0, "stop after this many frames (0 = run until interrupted)")
	nodes := fs.Int("nodes", 10000, "number of simulated nodes updated per frame")
	points := fs.Int("sweep-points", 200000, "frequency points per background sweep")
	trials := fs.Int("trials", 2000, "Monte Carlo trials per tolerance analysis")
	resweep := fs.Int("resweep", 120, "frames between sweeps (0 = sweep once)")
	worstK := fs.Int("worst", 5, "number of worst-case trials to retain")
	seed := fs.Uint64("seed", 1, "Monte Carlo seed")
	trace := fs.Bool("trace", false, "export spans to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *fps < 1 {
		return fmt.Errorf("fps must be positive, got %d", *fps)
	}

	cfg := offload.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = offload.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if *trace {
		shutdown, err := installTracing()
		if err != nil {
			return err
		}
		defer shutdown()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	pool, err := offload.NewWorkerPool(cfg.Workers, cfg.PoolOptions(logger, registry)...)
	if err != nil {
		return err
	}
	defer pool.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := newDemo(demoOptions{
		Nodes:        *nodes,
		SweepPoints:  *points,
		Trials:       *trials,
		StepBudget:   cfg.StepBudget,
		ResweepEvery: *resweep,
		WorstK:       *worstK,
		Seed:         *seed,
	}, logger, pool)

	g, ctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})
	g.Go(func() error {
		defer close(loopDone)
		return loop(ctx, d, time.Second/time.Duration(*fps), *frames)
	})
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, loopDone, cfg.Metrics.Addr, registry, logger)
		})
	}
	return g.Wait()
}

// loop runs the frame loop until ctx is done or the frame limit is reached.
func loop(ctx context.Context, d *demo, period time.Duration, frames int) error {
	defer d.stop()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	last := time.Now()
	for frames == 0 || d.frame < frames {
		select {
		case <-ctx.Done():
			d.logger.Info("frame loop interrupted", zap.Int("frame", d.frame))
			return nil
		case now := <-ticker.C:
			d.step(ctx, now.Sub(last))
			last = now
		}
	}
	d.logger.Info("frame loop finished",
		zap.Int("frames", d.frame),
		zap.Any("pool", d.pool.Stats()))
	return nil
}

func serveMetrics(ctx context.Context, loopDone <-chan struct{}, addr string, registry *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	case <-loopDone:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func installTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return func() {
		_ = tp.Shutdown(context.Background())
	}, nil
}
