package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the scheduler's prometheus collectors.
type Metrics struct {
	Jobs     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// newMetrics registers the collectors on reg. A nil reg leaves them
// unregistered.
func newMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mcab",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Stage executions by stage and outcome.",
		}, []string{"stage", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcab",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each stage per file.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcab",
			Subsystem: "pipeline",
			Name:      "files_in_flight",
			Help:      "Files between enumeration and completion.",
		}),
	}
}
