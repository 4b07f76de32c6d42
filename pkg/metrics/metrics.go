// Package metrics provides the centralized Prometheus surface for the
// service. All metrics are defined in their respective packages (ratelimit,
// upload, queue, cache) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the /metrics handler and documents all available
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the service.
// All metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default registry in
// Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - gate_limiter_admitted_total (Counter): Requests admitted by the limiter
//   - gate_limiter_denied_total (Counter): Requests denied with 429
//   - gate_limiter_store_errors_total (Counter): Counter-store failures during decisions
//   - gate_limiter_fallback_decisions_total (Counter): Decisions taken by the local fallback limiter
//
// Upload Metrics (pkg/upload):
//   - gate_uploads_total{outcome} (Counter): Ingestions by outcome (accepted, too_large, aborted, error)
//   - gate_upload_bytes (Histogram): Bytes durably written per accepted upload
//
// Queue Metrics (pkg/queue):
//   - gate_jobs_enqueued_total (Counter): Jobs accepted by the queue
//   - gate_jobs_processed_total{outcome} (Counter): Attempts by outcome (completed, retried, dead)
//   - gate_job_retries_total (Counter): Retry reschedules
//   - gate_jobs_dead_lettered_total (Counter): Jobs moved to the dead-letter queue
//   - gate_job_duration_seconds (Histogram): Handler duration per attempt
//   - gate_queue_pending_depth (Gauge): Pending-list depth, sampled on claim
//
// Cache Metrics (pkg/cache):
//   - gate_cache_hits_total (Counter): Cache hits
//   - gate_cache_misses_total (Counter): Cache misses, corrupt entries included
//   - gate_cache_invalidations_total (Counter): Write-path invalidations
//   - gate_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(gate_cache_hits_total[5m])) /
//   (sum(rate(gate_cache_hits_total[5m])) + sum(rate(gate_cache_misses_total[5m])))
//
//   # Denial Rate
//   rate(gate_limiter_denied_total[5m]) /
//   (rate(gate_limiter_admitted_total[5m]) + rate(gate_limiter_denied_total[5m]))
//
//   # Dead-Letter Rate
//   rate(gate_jobs_dead_lettered_total[5m])
//
//   # P95 Job Duration
//   histogram_quantile(0.95, rate(gate_job_duration_seconds_bucket[5m]))
//
//   # Queue Backlog
//   gate_queue_pending_depth > 100
