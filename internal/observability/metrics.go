// Package observability owns Prometheus collectors and OpenTelemetry setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshare_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapshare_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of open notification sockets.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapshare_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshare_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationsSent counts notifications handed to a live connection or the fan-out channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshare_notifications_sent_total",
		Help: "Notifications delivered to a connected recipient",
	}, []string{"type"})

	// NotificationsDropped counts notifications that were not delivered.
	NotificationsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshare_notifications_dropped_total",
		Help: "Notifications dropped before delivery",
	}, []string{"type", "reason"})

	// EngagementEvents counts state-changing engagement operations.
	EngagementEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshare_engagement_events_total",
		Help: "Engagement mutations by kind",
	}, []string{"kind"})

	// ImageUploadBytes records the size of stored images after re-encoding.
	ImageUploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapshare_image_upload_bytes",
		Help:    "Size of processed images written to object storage",
		Buckets: prometheus.ExponentialBuckets(16*1024, 2, 8),
	})
)
