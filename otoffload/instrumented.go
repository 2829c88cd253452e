// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otoffload

import (
	"github.com/petenewcomb/offload-go"
	"go.uber.org/zap"
)

// InstrumentedJob combines tracing, metrics, and logging for a background job
// body into a single wrapper. Log entries and metrics are produced inside the
// span so exporters can correlate them.
func InstrumentedJob[P, R any](
	operationName string,
	logger *zap.Logger,
	jobFunc offload.JobFunc[P, R],
) offload.JobFunc[P, R] {
	logged := LoggedJob(operationName, logger, jobFunc)
	metered := MeteredJob(operationName, logged)
	return TracedJob(operationName, metered)
}
