package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensors_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingestion metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_readings_total",
			Help: "Total number of readings received",
		},
		[]string{"status"}, // status: accepted, rejected, dropped
	)

	PipelineQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensors_pipeline_queue_size",
			Help: "Current number of readings waiting for evaluation",
		},
	)

	PipelineQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensors_pipeline_queue_capacity",
			Help: "Capacity of the evaluation queue",
		},
	)

	// Broadcast metrics
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensors_broadcasts_total",
			Help: "Total number of events delivered to subscribers",
		},
	)

	BroadcastsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensors_broadcasts_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		},
	)

	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sensors_active_subscribers",
			Help: "Current number of live subscriber connections",
		},
	)

	// Alerting metrics
	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_alerts_triggered_total",
			Help: "Total number of threshold breaches detected",
		},
		[]string{"condition"},
	)

	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by the cooldown window",
		},
		[]string{"condition"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_notifications_total",
			Help: "Total number of outbound notification attempts",
		},
		[]string{"status"}, // status: sent, failed
	)

	// Storage metrics
	ReadingsPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_readings_persisted_total",
			Help: "Total number of alert-triggering readings persisted",
		},
		[]string{"status"}, // status: success, failed
	)

	// Alert export metrics
	AlertExportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_alert_export_total",
			Help: "Total number of alert events published to the event stream",
		},
		[]string{"status"}, // status: success, failed
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensors_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
