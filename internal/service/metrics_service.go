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

// MetricsService encapsulates Prometheus instrumentation for the sync agent
// and provides lightweight snapshots for the status endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	pendingGauge    prometheus.Gauge
	appliedTotal    prometheus.Counter
	failureTotal    *prometheus.CounterVec
	applyDuration   prometheus.Histogram
	claimConflicts  prometheus.Counter

	appliedCount  uint64
	failedCount   uint64
	lastRunMillis int64
}

// MetricsSnapshot is the status endpoint's view of sync progress.
type MetricsSnapshot struct {
	Applied   uint64     `json:"applied"`
	Failed    uint64     `json:"failed"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
}

// NewMetricsService registers the sync collectors.
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

	pendingGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fieldsync_mutations_pending",
		Help: "Outbox records currently awaiting remote apply",
	})

	appliedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_mutations_applied_total",
		Help: "Mutations successfully applied to the remote store",
	})

	failureTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_mutation_failures_total",
		Help: "Mutation apply failures by kind",
	}, []string{"kind"})

	applyDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldsync_mutation_apply_duration_seconds",
		Help:    "Duration of remote apply attempts",
		Buckets: prometheus.DefBuckets,
	})

	claimConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldsync_claim_conflicts_total",
		Help: "Claims lost to a concurrent worker",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, pendingGauge, appliedTotal, failureTotal, applyDuration, claimConflicts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		pendingGauge:    pendingGauge,
		appliedTotal:    appliedTotal,
		failureTotal:    failureTotal,
		applyDuration:   applyDuration,
		claimConflicts:  claimConflicts,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records request metrics.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// SetPending records the current outbox backlog.
func (s *MetricsService) SetPending(count int64) {
	if s == nil {
		return
	}
	s.pendingGauge.Set(float64(count))
}

// ObserveApplied records a successful remote apply.
func (s *MetricsService) ObserveApplied(duration time.Duration) {
	if s == nil {
		return
	}
	s.appliedTotal.Inc()
	s.applyDuration.Observe(duration.Seconds())
	atomic.AddUint64(&s.appliedCount, 1)
}

// ObserveFailure records an apply failure by kind.
func (s *MetricsService) ObserveFailure(kind string, duration time.Duration) {
	if s == nil {
		return
	}
	s.failureTotal.WithLabelValues(kind).Inc()
	s.applyDuration.Observe(duration.Seconds())
	atomic.AddUint64(&s.failedCount, 1)
}

// ObserveClaimConflict records a claim lost to a concurrent worker.
func (s *MetricsService) ObserveClaimConflict() {
	if s == nil {
		return
	}
	s.claimConflicts.Inc()
}

// MarkRun records the completion time of a drain pass.
func (s *MetricsService) MarkRun(at time.Time) {
	if s == nil {
		return
	}
	atomic.StoreInt64(&s.lastRunMillis, at.UnixMilli())
}

// Snapshot returns the counters for the status endpoint.
func (s *MetricsService) Snapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{}
	}
	snapshot := MetricsSnapshot{
		Applied: atomic.LoadUint64(&s.appliedCount),
		Failed:  atomic.LoadUint64(&s.failedCount),
	}
	if millis := atomic.LoadInt64(&s.lastRunMillis); millis > 0 {
		at := time.UnixMilli(millis).UTC()
		snapshot.LastRunAt = &at
	}
	return snapshot
}
