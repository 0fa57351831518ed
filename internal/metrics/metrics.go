package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Notification pipeline
	NotificationsCreated    *prometheus.CounterVec
	NotificationsSuppressed prometheus.Counter
	NotificationStoreErrors prometheus.Counter

	// Realtime dispatch
	PushesDelivered *prometheus.CounterVec
	PushErrors      *prometheus.CounterVec

	// WebSocket connections
	ActiveConnections prometheus.Gauge
	TotalConnections  prometheus.Counter

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the singleton metrics instance, registering all
// collectors on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			NotificationsCreated: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_created_total",
					Help: "Notifications recorded in the store, by kind",
				},
				[]string{"kind"},
			),
			NotificationsSuppressed: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "notifications_suppressed_total",
					Help: "Self-notifications suppressed before any write",
				},
			),
			NotificationStoreErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "notification_store_errors_total",
					Help: "Failed notification store writes",
				},
			),
			PushesDelivered: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_pushes_delivered_total",
					Help: "Payloads delivered to a bound channel, by event",
				},
				[]string{"event"},
			),
			PushErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_push_errors_total",
					Help: "Channel delivery failures (channel is unbound), by event",
				},
				[]string{"event"},
			),
			ActiveConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_active_connections",
					Help: "Currently open websocket connections",
				},
			),
			TotalConnections: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "websocket_connections_total",
					Help: "Websocket connections accepted since start",
				},
			),
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
		}
	})
	return instance
}
