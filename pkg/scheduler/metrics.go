package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job outcomes, used as the "outcome" metric label.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeTimeout   = "timeout"
	OutcomeFault     = "fault"
	OutcomeClosed    = "closed"
)

// Metrics holds the pool's Prometheus collectors.
type Metrics struct {
	QueueDepth  prometheus.Gauge
	BusyWorkers prometheus.Gauge
	Jobs        *prometheus.CounterVec
	Duration    prometheus.Histogram
	Respawns    prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "passthrough",
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Jobs waiting for an idle worker.",
		}),
		BusyWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "passthrough",
			Subsystem: "scheduler",
			Name:      "busy_workers",
			Help:      "Workers with a job assigned.",
		}),
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passthrough",
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Finished jobs by outcome.",
		}, []string{"outcome"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "passthrough",
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Time from submission to the job's end or error.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		Respawns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "passthrough",
			Subsystem: "scheduler",
			Name:      "worker_respawns_total",
			Help:      "Workers replaced after a timeout or fault.",
		}),
	}
}
