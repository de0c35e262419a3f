package astronomy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for astronomy API operations.
var (
	astronomyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starwatch_astronomy_requests_total",
		Help: "Total astronomy API requests by chart kind and status",
	}, []string{"kind", "status"})

	astronomyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starwatch_astronomy_request_duration_seconds",
		Help:    "Astronomy API request duration in seconds by chart kind",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"kind"})

	astronomyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starwatch_astronomy_errors_total",
		Help: "Total astronomy API errors by class",
	}, []string{"class"})

	astronomyBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "starwatch_astronomy_breaker_open",
		Help: "1 while the astronomy API circuit breaker is open, 0 otherwise",
	})
)
