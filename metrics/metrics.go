package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job execution metrics, labelled by final outcome of the attempt
// (succeeded, failed, cancelled, timeout).
var (
	JobAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardpress_job_attempts_total",
			Help: "Print job execution attempts by outcome",
		},
		[]string{"outcome"},
	)

	JobAttemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardpress_job_attempt_duration_seconds",
			Help:    "Duration of one print job execution attempt",
			Buckets: prometheus.DefBuckets,
		},
	)

	PagesRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardpress_pages_rendered_total",
			Help: "Card/sheet pages rendered into PDF artifacts",
		},
	)

	JobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardpress_jobs_queued",
			Help: "Jobs currently waiting in the worker queue",
		},
	)
)
