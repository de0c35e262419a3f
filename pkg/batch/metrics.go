package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for batch runs. The "job" label is reserved for the
// Pushgateway grouping key, so runs are labelled "runner".
var (
	batchDispatchRoundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starwatch_batch_dispatch_rounds_total",
		Help: "Total group dispatch rounds by runner",
	}, []string{"runner"})

	batchFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starwatch_batch_fetches_total",
		Help: "Total item fetches by runner and outcome",
	}, []string{"runner", "outcome"})

	batchRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starwatch_batch_retry_backoff_seconds",
		Help:    "Backoff duration before a group is resubmitted",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"runner"})

	batchRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starwatch_batch_retry_exhausted_total",
		Help: "Total groups that exhausted their retry attempts",
	}, []string{"runner"})

	batchGroupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starwatch_batch_group_duration_seconds",
		Help:    "Time to resolve one group, including repair rounds",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"runner"})
)
