// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otoffload

import (
	"context"

	"github.com/petenewcomb/offload-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "otoffload"

// TracedJob wraps a background job body in a span with the given operation
// name. The span is a child of whatever span is active in the context passed
// to Launch. Final progress is recorded as attributes, cancellation as an
// event, and a returned error as the span status.
func TracedJob[P, R any](
	operationName string,
	jobFunc offload.JobFunc[P, R],
) offload.JobFunc[P, R] {
	return func(ctx context.Context, params P, progress *offload.Progress) (R, error) {
		tracer := otel.Tracer(instrumentationName)
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()

		result, err := jobFunc(ctx, params, progress)

		done, total := progress.Load()
		span.SetAttributes(
			attribute.Int("offload.progress.done", done),
			attribute.Int("offload.progress.total", total),
		)
		if progress.Cancelled() {
			span.AddEvent("cancelled")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}

// TracedTask returns a pool task that runs taskFunc inside a span with the
// given operation name, parented to the span active in ctx and labelled with
// the executing worker's identity. See [PropagateTask] for how ctx reaches the
// task.
func TracedTask(
	ctx context.Context,
	operationName string,
	taskFunc func(ctx context.Context, worker int),
) offload.TaskFunc {
	return PropagateTask(ctx, func(ctx context.Context, worker int) {
		tracer := otel.Tracer(instrumentationName)
		ctx, span := tracer.Start(ctx, operationName,
			trace.WithAttributes(attribute.Int("offload.worker", worker)))
		defer span.End()

		taskFunc(ctx, worker)
	})
}

// TracedIndexFunc wraps a ParallelFor body so that each worker's share of the
// range is traced under a span parented to ctx. Because a span per index would
// swamp most exporters, the span covers a single index only when sampled is
// true for it.
func TracedIndexFunc(
	ctx context.Context,
	operationName string,
	sampled func(index int) bool,
	indexFunc offload.IndexFunc,
) offload.IndexFunc {
	ctx = detach(ctx)
	return func(worker, index int) {
		if sampled == nil || !sampled(index) {
			indexFunc(worker, index)
			return
		}
		_, span := otel.Tracer(instrumentationName).Start(ctx, operationName,
			trace.WithAttributes(
				attribute.Int("offload.worker", worker),
				attribute.Int("offload.index", index),
			))
		defer span.End()
		indexFunc(worker, index)
	}
}
