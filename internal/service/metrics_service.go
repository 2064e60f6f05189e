package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for the health endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	remoteDuration  *prometheus.HistogramVec
	syncItems       *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	cleanupItems    *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	skippedTicks    prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
	requestCount   uint64
	syncRuns       uint64
	webhookCount   uint64
}

// MetricsSnapshot is a cheap in-process summary of the counters.
type MetricsSnapshot struct {
	RequestsTotal uint64    `json:"requests_total"`
	CacheHits     uint64    `json:"cache_hits"`
	CacheMisses   uint64    `json:"cache_misses"`
	SyncRuns      uint64    `json:"sync_runs"`
	Webhooks      uint64    `json:"webhooks"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	remoteDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_provider_request_duration_seconds",
		Help:    "Latency of media provider API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	syncItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_sync_items_total",
		Help: "Assets processed by sync phase and outcome",
	}, []string{"phase", "outcome"})

	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "media_sync_duration_seconds",
		Help:    "Duration of sync operations",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind", "outcome"})

	cleanupItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_cleanup_items_total",
		Help: "Cleanup queue items processed by final status",
	}, []string{"status"})

	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_webhooks_total",
		Help: "Webhook notifications received by type and outcome",
	}, []string{"type", "outcome"})

	skippedTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "media_cleanup_skipped_ticks_total",
		Help: "Scheduler ticks skipped because the previous tick was still running",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, remoteDuration,
		syncItems, syncDuration, cleanupItems, webhooks, skippedTicks, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		remoteDuration:  remoteDuration,
		syncItems:       syncItems,
		syncDuration:    syncDuration,
		cleanupItems:    cleanupItems,
		webhooks:        webhooks,
		skippedTicks:    skippedTicks,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveRemoteCall matches the media client's observe hook.
func (m *MetricsService) ObserveRemoteCall(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(operation, outcomeLabel(err)).Observe(duration.Seconds())
}

// RecordSyncItem counts one asset handled by a sync phase.
func (m *MetricsService) RecordSyncItem(phase, outcome string) {
	if m == nil {
		return
	}
	m.syncItems.WithLabelValues(phase, outcome).Inc()
}

// ObserveSync records the duration of a finished sync operation.
func (m *MetricsService) ObserveSync(kind string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.syncDuration.WithLabelValues(kind, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.syncRuns, 1)
}

// RecordCleanupItem counts a processed queue item by its final status.
func (m *MetricsService) RecordCleanupItem(status string) {
	if m == nil {
		return
	}
	m.cleanupItems.WithLabelValues(status).Inc()
}

// RecordWebhook counts a webhook delivery.
func (m *MetricsService) RecordWebhook(kind string, err error) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.webhooks.WithLabelValues(kind, outcomeLabel(err)).Inc()
	atomic.AddUint64(&m.webhookCount, 1)
}

// RecordSkippedTick counts a scheduler tick dropped because another was running.
func (m *MetricsService) RecordSkippedTick() {
	if m == nil {
		return
	}
	m.skippedTicks.Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		CacheHits:     atomic.LoadUint64(&m.cacheHitCount),
		CacheMisses:   atomic.LoadUint64(&m.cacheMissCount),
		SyncRuns:      atomic.LoadUint64(&m.syncRuns),
		Webhooks:      atomic.LoadUint64(&m.webhookCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
