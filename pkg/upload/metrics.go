package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_uploads_total",
		Help: "Total number of upload ingestions by outcome",
	}, []string{"outcome"}) // "accepted", "too_large", "aborted", "error"

	uploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gate_upload_bytes",
		Help:    "Bytes durably written per accepted upload",
		Buckets: prometheus.ExponentialBuckets(1024, 8, 10),
	})
)
