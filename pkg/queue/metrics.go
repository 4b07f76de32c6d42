package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_jobs_enqueued_total",
		Help: "Total number of jobs accepted by the queue",
	})

	jobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_jobs_processed_total",
		Help: "Total number of processing attempts by outcome",
	}, []string{"outcome"}) // "completed", "retried", "dead"

	jobRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_job_retries_total",
		Help: "Total number of retries scheduled with backoff",
	})

	jobsDeadLetteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gate_jobs_dead_lettered_total",
		Help: "Total number of jobs moved to the dead-letter queue",
	})

	jobDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_job_duration_seconds",
		Help:    "Processing duration per attempt",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	queuePendingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gate_queue_pending_depth",
		Help: "Jobs waiting in the pending list, sampled on claim",
	})
)
