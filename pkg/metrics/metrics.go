// Package metrics provides the Prometheus registry for starwatch and pushes
// it to a Pushgateway at the end of a run.
// All metrics are defined in their respective packages (batch, astronomy,
// openmeteo, cache) to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry is the default Prometheus registry used by starwatch.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer Push reads from.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Push sends every registered metric to the Pushgateway at url under job.
// Batch jobs exit before a scrape could happen, so this is the only way their
// metrics reach Prometheus.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return fmt.Errorf("pushgateway url is required")
	}
	if job == "" {
		return fmt.Errorf("job name is required")
	}

	if err := push.New(url, job).Gatherer(Gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Batch Metrics (pkg/batch):
//   - starwatch_batch_dispatch_rounds_total{runner} (Counter): Group dispatch rounds, including resubmissions
//   - starwatch_batch_fetches_total{runner, outcome} (Counter): Item fetches by outcome (success, failure)
//   - starwatch_batch_retry_backoff_seconds{runner} (Histogram): Wait before resubmitting a group
//   - starwatch_batch_retry_exhausted_total{runner} (Counter): Groups left unresolved after the last attempt
//   - starwatch_batch_group_duration_seconds{runner} (Histogram): Time to resolve a group
//
// Astronomy API Metrics (pkg/astronomy):
//   - starwatch_astronomy_requests_total{kind, status} (Counter): Requests by chart kind and HTTP status
//   - starwatch_astronomy_request_duration_seconds{kind} (Histogram): Request duration by chart kind
//   - starwatch_astronomy_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, payload)
//   - starwatch_astronomy_breaker_open (Gauge): 1 while the circuit breaker is open
//
// Forecast Metrics (pkg/openmeteo):
//   - starwatch_openmeteo_requests_total{status} (Counter): Requests by HTTP status
//
// Cache Metrics (pkg/cache):
//   - starwatch_cache_lookups_total{kind, result} (Counter): Lookups by chart kind and result (hit, miss, expired, invalid)
//   - starwatch_cache_writes_total{kind} (Counter): Chart URLs written
//   - starwatch_cache_errors_total{operation} (Counter): Redis errors by operation
//
// Example Prometheus Queries:
//
//   # Resubmission ratio
//   sum(rate(starwatch_batch_dispatch_rounds_total[1d])) by (runner)
//
//   # Item failure rate
//   sum(rate(starwatch_batch_fetches_total{outcome="failure"}[1d])) /
//   sum(rate(starwatch_batch_fetches_total[1d]))
//
//   # Cache hit ratio during a job
//   sum(rate(starwatch_cache_lookups_total{result="hit"}[1d])) / sum(rate(starwatch_cache_lookups_total[1d]))
//
//   # Missing image responses
//   rate(starwatch_astronomy_errors_total{class="payload"}[1d])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(starwatch_astronomy_request_duration_seconds_bucket[1d]))
