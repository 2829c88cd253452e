// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otoffload

import (
	"context"
	"time"

	"github.com/petenewcomb/offload-go"
	"go.uber.org/zap"
)

// LoggedJob adds structured logging to a background job body. It logs the
// start and end of each run with timing, final progress, and any error. A nil
// logger selects zap.L().
func LoggedJob[P, R any](
	operationName string,
	logger *zap.Logger,
	jobFunc offload.JobFunc[P, R],
) offload.JobFunc[P, R] {
	return func(ctx context.Context, params P, progress *offload.Progress) (R, error) {
		logger := loggerOrGlobal(logger)

		logger.Debug("Starting job",
			zap.String("operation", operationName),
			zap.String("component", instrumentationName))

		startTime := time.Now()
		result, err := jobFunc(ctx, params, progress)
		duration := time.Since(startTime)

		done, total := progress.Load()
		fields := []zap.Field{
			zap.String("operation", operationName),
			zap.String("component", instrumentationName),
			zap.Duration("duration", duration),
			zap.Int("done", done),
			zap.Int("total", total),
		}
		switch {
		case progress.Cancelled():
			logger.Info("Job cancelled", fields...)
		case err != nil:
			logger.Error("Job failed", append(fields, zap.Error(err))...)
		default:
			logger.Debug("Job completed", fields...)
		}

		return result, err
	}
}

// LoggedTask adds debug-level logging with timing to a pool task.
func LoggedTask(
	operationName string,
	logger *zap.Logger,
	taskFunc offload.TaskFunc,
) offload.TaskFunc {
	return func(worker int) {
		logger := loggerOrGlobal(logger)
		startTime := time.Now()
		taskFunc(worker)
		logger.Debug("Task completed",
			zap.String("operation", operationName),
			zap.String("component", instrumentationName),
			zap.Int("worker", worker),
			zap.Duration("duration", time.Since(startTime)))
	}
}

func loggerOrGlobal(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.L()
	}
	return logger
}
