// Package metrics registers the Prometheus instruments exposed on /metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Engagement metrics
	LikeTogglesTotal      prometheus.CounterVec
	ToggleRejectionsTotal prometheus.CounterVec
	CommentsTotal         prometheus.CounterVec

	// Feed metrics
	FeedPageLoads    prometheus.CounterVec
	FeedPageDuration prometheus.HistogramVec

	// Authoring metrics
	PostsWritten prometheus.CounterVec

	// Realtime metrics
	RealtimeConnections prometheus.GaugeVec
	RealtimeEvents      prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			LikeTogglesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "like_toggles_total",
					Help: "Total number of like toggles",
				},
				[]string{"direction"},
			),
			ToggleRejectionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "like_toggle_rejections_total",
					Help: "Like toggles rejected because one was already in flight",
				},
				[]string{},
			),
			CommentsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "comments_total",
					Help: "Total number of comments posted",
				},
				[]string{"identity_kind"},
			),

			FeedPageLoads: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "feed_page_loads_total",
					Help: "Total number of feed pages served",
				},
				[]string{"category"},
			),
			FeedPageDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "feed_page_duration_seconds",
					Help:    "Feed page build time in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1},
				},
				[]string{"category"},
			),

			PostsWritten: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "posts_written_total",
					Help: "Total number of posts created by the owner",
				},
				[]string{"category", "draft"},
			),

			RealtimeConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "realtime_connections",
					Help: "Currently connected WebSocket clients",
				},
				[]string{},
			),
			RealtimeEvents: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "realtime_events_total",
					Help: "Change events published to the realtime hub",
				},
				[]string{"table", "event"},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors returned to clients",
				},
				[]string{"code"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing on first use
func Get() *Metrics {
	return Initialize()
}
