// Package metrics exposes the Prometheus instrumentation the engine emits
// through. The engines never touch the registry directly; they receive an
// *Observer and call its record methods. A nil *Observer is a no-op, which
// keeps tests free of registry plumbing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Observer carries every counter and histogram the service records.
type Observer struct {
	registry *prometheus.Registry

	glpiRequestDuration *prometheus.HistogramVec
	glpiRequestRetries  prometheus.Counter
	glpiSlowResponses   prometheus.Counter
	glpiAuthRecoveries  prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	fallbackUsed          prometheus.Counter
	paginationSafetyStops prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewObserver builds an Observer backed by its own registry.
func NewObserver() *Observer {
	reg := prometheus.NewRegistry()
	o := &Observer{
		registry: reg,
		glpiRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "glpi_request_duration_seconds",
			Help:    "Duration of outbound GLPI API calls.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 3, 5, 10, 20},
		}, []string{"method", "endpoint", "status"}),
		glpiRequestRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glpi_request_retries_total",
			Help: "Retries performed against the GLPI API.",
		}),
		glpiSlowResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glpi_slow_responses_total",
			Help: "GLPI calls that took longer than the slow-response threshold.",
		}),
		glpiAuthRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glpi_auth_recoveries_total",
			Help: "Session invalidations triggered by a 401/403 response.",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits by namespace.",
		}, []string{"namespace"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses by namespace.",
		}, []string{"namespace"}),
		fallbackUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aggregate_fallback_total",
			Help: "Aggregate queries that fell back to per-cell counting.",
		}),
		paginationSafetyStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pagination_safety_stops_total",
			Help: "Paginated searches aborted at the record-count safety cap.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Inbound API requests by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Inbound API request duration by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		o.glpiRequestDuration, o.glpiRequestRetries, o.glpiSlowResponses,
		o.glpiAuthRecoveries, o.cacheHits, o.cacheMisses,
		o.fallbackUsed, o.paginationSafetyStops,
		o.httpRequests, o.httpDuration,
	)
	return o
}

// Handler returns the Prometheus exposition handler for this registry.
func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// GLPIRequest records one completed outbound call (after all retries).
func (o *Observer) GLPIRequest(method, endpoint string, status int, d time.Duration) {
	if o == nil {
		return
	}
	o.glpiRequestDuration.WithLabelValues(method, endpoint, strconv.Itoa(status)).Observe(d.Seconds())
}

// GLPIRetry records one retried attempt.
func (o *Observer) GLPIRetry() {
	if o == nil {
		return
	}
	o.glpiRequestRetries.Inc()
}

// GLPISlowResponse records a call that crossed the slow threshold.
func (o *Observer) GLPISlowResponse() {
	if o == nil {
		return
	}
	o.glpiSlowResponses.Inc()
}

// GLPIAuthRecovery records a session invalidation caused by 401/403.
func (o *Observer) GLPIAuthRecovery() {
	if o == nil {
		return
	}
	o.glpiAuthRecoveries.Inc()
}

// CacheHit records a hit in the given namespace.
func (o *Observer) CacheHit(namespace string) {
	if o == nil {
		return
	}
	o.cacheHits.WithLabelValues(namespace).Inc()
}

// CacheMiss records a miss in the given namespace.
func (o *Observer) CacheMiss(namespace string) {
	if o == nil {
		return
	}
	o.cacheMisses.WithLabelValues(namespace).Inc()
}

// FallbackUsed records an aggregate query that used the per-cell slow path.
func (o *Observer) FallbackUsed() {
	if o == nil {
		return
	}
	o.fallbackUsed.Inc()
}

// PaginationSafetyStop records a search aborted at the record cap.
func (o *Observer) PaginationSafetyStop() {
	if o == nil {
		return
	}
	o.paginationSafetyStops.Inc()
}

// HTTPRequest records one served API request.
func (o *Observer) HTTPRequest(route string, status int, d time.Duration) {
	if o == nil {
		return
	}
	o.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	o.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
