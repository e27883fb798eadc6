// Package telemetry provides observability primitives for the cache-aside service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	ActiveRequests     prometheus.Gauge
	RecordStoreLatency *prometheus.HistogramVec
	CacheHits          *prometheus.CounterVec
	CacheMisses        *prometheus.CounterVec
	CacheInvalidations *prometheus.CounterVec
	LeaderboardUpdates prometheus.Counter
	ExpiredKeysSwept   prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "cacheaside",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cacheaside",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		RecordStoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "cacheaside",
			Name:                            "record_store_duration_seconds",
			Help:                            "Record store call duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"op"}),

		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "cache_hits_total",
			Help:      "Total read-through cache hits.",
		}, []string{"kind"}),

		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "cache_misses_total",
			Help:      "Total read-through cache misses.",
		}, []string{"kind"}),

		CacheInvalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "cache_invalidations_total",
			Help:      "Total cache keys deleted after a write or by request.",
		}, []string{"reason"}),

		LeaderboardUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "leaderboard_updates_total",
			Help:      "Total leaderboard score updates.",
		}),

		ExpiredKeysSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cacheaside",
			Name:      "expired_keys_swept_total",
			Help:      "Total expired keys removed by the in-memory sweeper.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RecordStoreLatency,
		m.CacheHits,
		m.CacheMisses,
		m.CacheInvalidations,
		m.LeaderboardUpdates,
		m.ExpiredKeysSwept,
	)

	return m
}
