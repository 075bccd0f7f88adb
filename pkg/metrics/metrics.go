// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ChatMessagesTotal tracks chat messages sent per AI provider.
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages dispatched to AI providers",
		},
		[]string{"provider", "status"},
	)

	// ProviderDuration tracks upstream AI call duration.
	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Upstream AI provider request duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider"},
	)

	// ModerationBlocksTotal counts messages rejected by the moderation filter.
	ModerationBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "moderation_blocks_total",
			Help: "Total messages rejected by the moderation word filter",
		},
	)

	// RateLimitRejectionsTotal counts messages rejected by usage limits.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Total messages rejected by per-minute or daily caps",
		},
		[]string{"window"},
	)

	// ChatsSavedTotal counts chat persistence writes.
	ChatsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chats_saved_total",
			Help: "Total chat save operations",
		},
		[]string{"status"},
	)

	// AnalyticsEventsTotal counts analytics event inserts.
	AnalyticsEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_events_total",
			Help: "Total analytics events recorded",
		},
		[]string{"event_type", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordProviderCall records metrics for an upstream AI call.
func RecordProviderCall(provider, status string, duration float64) {
	ChatMessagesTotal.WithLabelValues(provider, status).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(duration)
}
