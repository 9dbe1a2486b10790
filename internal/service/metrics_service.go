package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService exposes Prometheus instrumentation for the API.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	cacheOps      *prometheus.CounterVec
	dbDuration    *prometheus.HistogramVec
	eventsEmitted *prometheus.CounterVec
	sseClients    *prometheus.GaugeVec
}

// NewMetricsService constructs the service with its own registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsService{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dresscode_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dresscode_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dresscode_cache_operations_total",
			Help: "Cache operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		dbDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dresscode_db_query_duration_seconds",
			Help:    "Database query latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dresscode_events_emitted_total",
			Help: "Lifecycle events fanned out by type and channel.",
		}, []string{"type", "channel"}),
		sseClients: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dresscode_sse_clients",
			Help: "Connected live dashboard clients per channel.",
		}, []string{"channel"}),
	}
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	s.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCacheOperation records a cache hit, miss or write.
func (s *MetricsService) RecordCacheOperation(operation, outcome string) {
	s.cacheOps.WithLabelValues(operation, outcome).Inc()
}

// ObserveDBQuery records database query latency.
func (s *MetricsService) ObserveDBQuery(operation string, duration time.Duration) {
	s.dbDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEventEmitted counts one fanned-out lifecycle event.
func (s *MetricsService) RecordEventEmitted(eventType, channel string) {
	s.eventsEmitted.WithLabelValues(eventType, channel).Inc()
}

// SetSSEClients tracks current live subscribers on a channel.
func (s *MetricsService) SetSSEClients(channel string, count int) {
	s.sseClients.WithLabelValues(channel).Set(float64(count))
}

// Handler exposes the registry for scraping.
func (s *MetricsService) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
