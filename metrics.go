// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package offload

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// poolMetrics holds the optional Prometheus collectors for a WorkerPool. The
// pool's own atomic counters are always maintained; these mirror them for
// external scraping.
type poolMetrics struct {
	registerer   prometheus.Registerer
	collectors   []prometheus.Collector
	queueDepth   prometheus.Gauge
	active       prometheus.Gauge
	submitted    prometheus.Counter
	completed    prometheus.Counter
	rejected     prometheus.Counter
	taskDuration prometheus.Histogram
}

const defaultMetricsPrefix = "offload_pool"

func newPoolMetrics(registerer prometheus.Registerer, prefix string) (*poolMetrics, error) {
	if prefix == "" {
		prefix = defaultMetricsPrefix
	}
	m := &poolMetrics{
		registerer: registerer,
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_queue_depth",
			Help: "Current number of queued tasks",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_active_tasks",
			Help: "Number of tasks currently executing",
		}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_submitted_total",
			Help: "Total tasks accepted by Submit",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_completed_total",
			Help: "Total tasks that finished executing",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_rejected_total",
			Help: "Total tasks rejected because the queue was full or the pool shut down",
		}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "_task_duration_seconds",
			Help:    "Time spent executing task bodies",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
	}

	for _, c := range []prometheus.Collector{
		m.queueDepth, m.active, m.submitted, m.completed, m.rejected, m.taskDuration,
	} {
		if err := registerer.Register(c); err != nil {
			m.unregister()
			return nil, err
		}
		m.collectors = append(m.collectors, c)
	}
	return m, nil
}

func (m *poolMetrics) unregister() {
	for _, c := range m.collectors {
		m.registerer.Unregister(c)
	}
	m.collectors = nil
}

// isAlreadyRegistered reports whether err came from registering a collector
// name that is already in use.
func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}
