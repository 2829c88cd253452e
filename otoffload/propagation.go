// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otoffload provides OpenTelemetry and zap integration for the offload
// package. Its wrappers decorate job bodies and pool tasks with spans, metrics,
// and structured log entries without changing their signatures.
package otoffload

import (
	"context"

	"github.com/petenewcomb/offload-go"
	"go.opentelemetry.io/otel/trace"
)

// PropagateTask adapts a context-aware function into a pool task. Pool tasks
// take no context, and they may run after the submitter has returned and its
// context has been cancelled, so the task receives a context carrying only the
// span context of ctx: traces connect, but cancellation and deadlines do not
// leak into work the pool has already accepted.
func PropagateTask(
	ctx context.Context,
	taskFunc func(ctx context.Context, worker int),
) offload.TaskFunc {
	if taskFunc == nil {
		panic("task function must be non-nil")
	}
	ctx = detach(ctx)
	return func(worker int) {
		taskFunc(ctx, worker)
	}
}

func detach(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(ctx))
}
