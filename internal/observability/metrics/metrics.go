package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	submissionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_submission_duration_seconds",
		Help:    "Duration of onboarding submissions by step kind and result",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "result"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_notifications_total",
		Help: "Outbound notifications by kind and outcome",
	}, []string{"kind", "outcome"})

	reconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_reconciled_documents_total",
		Help: "Partially written submissions resolved by the reconciler",
	}, []string{"action"})

	emailOpens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portal_confirmation_email_opens_total",
		Help: "First opens of employee confirmation emails",
	})

	boardSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "portal_board_subscribers",
		Help: "Connected task board websocket clients",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveSubmission records one onboarding submission
func ObserveSubmission(kind, result string, duration time.Duration) {
	submissionDuration.WithLabelValues(kind, result).Observe(duration.Seconds())
}

// ObserveNotification counts a delivery outcome: sent, retried, dead, or enqueued
func ObserveNotification(kind, outcome string) {
	notifications.WithLabelValues(kind, outcome).Inc()
}

// ObserveReconcile counts a document the reconciler completed or discarded
func ObserveReconcile(action string) {
	reconciled.WithLabelValues(action).Inc()
}

// ObserveEmailOpen counts a recorded first open
func ObserveEmailOpen() {
	emailOpens.Inc()
}

// SetBoardSubscribers sets the connected websocket client gauge
func SetBoardSubscribers(count int) {
	if count < 0 {
		count = 0
	}
	boardSubscribers.Set(float64(count))
}
