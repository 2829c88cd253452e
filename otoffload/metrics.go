// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otoffload

import (
	"context"
	"time"

	"github.com/petenewcomb/offload-go"
	"go.opentelemetry.io/otel"
)

// MeteredJob records run count, duration, cancellation, and error metrics for
// a background job body through the global OpenTelemetry meter provider.
func MeteredJob[P, R any](
	metricName string,
	jobFunc offload.JobFunc[P, R],
) offload.JobFunc[P, R] {
	return func(ctx context.Context, params P, progress *offload.Progress) (R, error) {
		meter := otel.GetMeterProvider().Meter(instrumentationName)
		runCounter, _ := meter.Int64Counter(metricName + ".count")
		runDuration, _ := meter.Float64Histogram(metricName + ".duration")

		startTime := time.Now()
		runCounter.Add(ctx, 1)

		result, err := jobFunc(ctx, params, progress)

		// The job context may already be cancelled; record against a context
		// that is not.
		recordCtx := context.WithoutCancel(ctx)
		runDuration.Record(recordCtx, time.Since(startTime).Seconds())
		if progress.Cancelled() {
			cancelCounter, _ := meter.Int64Counter(metricName + ".cancelled")
			cancelCounter.Add(recordCtx, 1)
		} else if err != nil {
			errorCounter, _ := meter.Int64Counter(metricName + ".errors")
			errorCounter.Add(recordCtx, 1)
		}

		return result, err
	}
}

// MeteredTask records count and duration metrics for a pool task.
func MeteredTask(metricName string, taskFunc offload.TaskFunc) offload.TaskFunc {
	return func(worker int) {
		ctx := context.Background()
		meter := otel.GetMeterProvider().Meter(instrumentationName)
		taskCounter, _ := meter.Int64Counter(metricName + ".count")
		taskDuration, _ := meter.Float64Histogram(metricName + ".duration")

		startTime := time.Now()
		taskCounter.Add(ctx, 1)
		taskFunc(worker)
		taskDuration.Record(ctx, time.Since(startTime).Seconds())
	}
}
