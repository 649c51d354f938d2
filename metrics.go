package taskpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// poolMetrics holds the Prometheus instrumentation for a TaskPool,
// following the Namespace/Subsystem/Name/Help shape of
// internal/background/metrics.go in the teacher repo. Each TaskPool gets
// its own registered set, labeled by pool id, so metrics from multiple
// pools in the same process don't collide.
type poolMetrics struct {
	activeWorkers   prometheus.Gauge
	queuedTasks     prometheus.Gauge
	completedTasks  prometheus.Counter
	failedTasks     prometheus.Counter
	stolenFromQueue prometheus.Counter
	forceLatency    prometheus.Histogram
}

// newPoolMetrics registers a fresh metric set for one pool into its own
// private registry. Each TaskPool gets its own prometheus.Registry
// (rather than the global default registerer) so short-lived pools in
// tests and in ExecuteInNewThread's degenerate single-task pools don't
// collide or accumulate in a process-wide registry.
func newPoolMetrics(poolID string) *poolMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pool": poolID}
	return &poolMetrics{
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "taskpool",
			Name:        "active_workers",
			Help:        "Number of workers currently executing a task.",
			ConstLabels: labels,
		}),
		queuedTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "taskpool",
			Name:        "queued_tasks",
			Help:        "Number of tasks currently linked into the queue.",
			ConstLabels: labels,
		}),
		completedTasks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskpool",
			Name:        "completed_tasks_total",
			Help:        "Total number of tasks that finished without an exception.",
			ConstLabels: labels,
		}),
		failedTasks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskpool",
			Name:        "failed_tasks_total",
			Help:        "Total number of tasks that finished with a captured exception.",
			ConstLabels: labels,
		}),
		stolenFromQueue: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskpool",
			Name:        "stolen_from_queue_total",
			Help:        "Total number of tasks executed inline via the steal-from-middle fast path.",
			ConstLabels: labels,
		}),
		forceLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "taskpool",
			Name:        "force_latency_seconds",
			Help:        "Time a Force call spent waiting for its task to finish.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}),
	}
}

func (m *poolMetrics) recordFinish(err error) {
	if err != nil {
		m.failedTasks.Inc()
	} else {
		m.completedTasks.Inc()
	}
}
