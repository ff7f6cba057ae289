package viewer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the viewer metrics, exposed on /metrics.
type Metrics struct {
	ManifestRequestTotal    *prometheus.CounterVec
	ManifestRequestDuration *prometheus.HistogramVec
	ThumbnailRequestTotal   *prometheus.CounterVec
	SessionsActive          prometheus.Gauge
	SessionMessageTotal     *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics returns the process wide metrics, registering them on
// first use.
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		ManifestRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_manifest_requests_total",
			Help: "Total number of manifest normalizations by outcome",
		}, []string{"status"}),

		ManifestRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "viewer_manifest_request_duration_seconds",
			Help:    "Manifest fetch and normalization duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),

		ThumbnailRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_thumbnail_requests_total",
			Help: "Total number of proxied thumbnails by outcome",
		}, []string{"status"}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewer_sessions_active",
			Help: "Number of live viewer sessions",
		}),

		SessionMessageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewer_session_messages_total",
			Help: "Total number of websocket messages received by type",
		}, []string{"type"}),
	}

	m.ManifestRequestTotal = registerOrGet(m.ManifestRequestTotal).(*prometheus.CounterVec)
	m.ManifestRequestDuration = registerOrGet(m.ManifestRequestDuration).(*prometheus.HistogramVec)
	m.ThumbnailRequestTotal = registerOrGet(m.ThumbnailRequestTotal).(*prometheus.CounterVec)
	m.SessionsActive = registerOrGet(m.SessionsActive).(prometheus.Gauge)
	m.SessionMessageTotal = registerOrGet(m.SessionMessageTotal).(*prometheus.CounterVec)

	globalMetrics = m

	return m
}

// registerOrGet tries to register a metric, returns the existing one
// when already registered.
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
