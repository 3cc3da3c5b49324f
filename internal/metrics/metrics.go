// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts accepted workflow state changes by entity and target state.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffbook",
		Name:      "workflow_transitions_total",
		Help:      "Accepted workflow state transitions.",
	}, []string{"entity", "to"})

	// Notifications counts fan-out deliveries by channel and outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffbook",
		Name:      "notifications_total",
		Help:      "Notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "staffbook",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "staffbook",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func Transition(entity, to string) {
	Transitions.WithLabelValues(entity, to).Inc()
}

func Notification(channel string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	Notifications.WithLabelValues(channel, outcome).Inc()
}
