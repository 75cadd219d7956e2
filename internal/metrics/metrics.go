// Package metrics exposes Prometheus collectors for the API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hisaab"

// Submission results.
const (
	SubmitSuccess    = "success"
	SubmitValidation = "validation_error"
	SubmitStoreError = "store_error"
	SubmitInFlight   = "in_progress"
)

var (
	// FormSubmissions counts transaction form submissions by result.
	FormSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "form_submissions_total",
		Help:      "Transaction form submissions by result.",
	}, []string{"result"})

	// FormsOpen is the number of mounted transaction forms.
	FormsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forms_open",
		Help:      "Mounted transaction forms.",
	})

	// LiveSubscriptions is the number of active live query subscriptions.
	LiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_subscriptions",
		Help:      "Active live query subscriptions by collection.",
	}, []string{"collection"})

	// LiveSnapshots counts snapshots delivered to subscribers.
	LiveSnapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "live_snapshots_total",
		Help:      "Snapshots delivered to live query subscribers.",
	}, []string{"collection", "outcome"})

	// HTTPRequests observes request latency by route and status.
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
