// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pesaflow_deposits_initiated_total",
			Help: "Deposit initiation attempts by outcome",
		},
		[]string{"outcome"},
	)

	CallbacksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pesaflow_callbacks_total",
			Help: "STK callbacks handled by outcome",
		},
		[]string{"outcome"},
	)

	UnrecordedAcceptances = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pesaflow_unrecorded_acceptances_total",
			Help: "Provider-accepted pushes whose pending record could not be written",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pesaflow_events_publish_errors_total",
			Help: "Settlement events that could not be published",
		},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pesaflow_upstream_request_duration_seconds",
			Help:    "Duration of calls to the payment provider",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)
)

// ObserveUpstream records the time since start for a provider call.
func ObserveUpstream(operation string, start time.Time) {
	upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
