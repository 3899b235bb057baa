package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicreport"

// CacheResult es el resultado de una operación de caché.
type CacheResult string

const (
	CacheHit     CacheResult = "hit"
	CacheMiss    CacheResult = "miss"
	CacheCorrupt CacheResult = "corrupt"
	CacheStored  CacheResult = "stored"
	CacheDeleted CacheResult = "deleted"
	CacheError   CacheResult = "error"
)

// Recorder publica las métricas de caché, invalidación y HTTP.
// Un Recorder nil es válido y no registra nada.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	cacheOperations *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec

	invalidations      *prometheus.CounterVec
	invalidatedKeys    *prometheus.CounterVec
	invalidationTiming *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// NewRecorder registra los colectores en reg. Con reg nil crea un registro propio.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	r := &Recorder{
		cacheOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache operations by kind and result.",
		}, []string{"operation", "result"}),
		cacheLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operation_duration_seconds",
			Help:      "Latency of cache operations.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"operation"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "runs_total",
			Help:      "Invalidation plans executed, by entity and outcome.",
		}, []string{"entity", "outcome"}),
		invalidatedKeys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "deleted_keys_total",
			Help:      "Cache keys removed by invalidation, by entity.",
		}, []string{"entity"}),
		invalidationTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "duration_seconds",
			Help:      "Time spent running an invalidation plan.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"entity"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		r.cacheOperations, r.cacheLatency,
		r.invalidations, r.invalidatedKeys, r.invalidationTiming,
		r.httpRequests, r.httpLatency,
	)

	r.gatherer = reg
	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler expone el endpoint /metrics.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer devuelve el registro subyacente (tests).
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveCache registra una operación sobre el almacén de caché.
func (r *Recorder) ObserveCache(operation string, result CacheResult, duration time.Duration) {
	if r == nil {
		return
	}
	op := normalizeLabel(operation)
	r.cacheOperations.WithLabelValues(op, normalizeLabel(string(result))).Inc()
	r.cacheLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveInvalidation registra la ejecución de un plan de invalidación.
func (r *Recorder) ObserveInvalidation(entity string, deleted int64, err error, duration time.Duration) {
	if r == nil {
		return
	}
	entityLabel := normalizeLabel(entity)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.invalidations.WithLabelValues(entityLabel, outcome).Inc()
	if deleted > 0 {
		r.invalidatedKeys.WithLabelValues(entityLabel).Add(float64(deleted))
	}
	r.invalidationTiming.WithLabelValues(entityLabel).Observe(duration.Seconds())
}

// ObserveHTTP registra una petición HTTP completada.
func (r *Recorder) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	r.httpRequests.WithLabelValues(method, routeLabel, strconv.Itoa(status)).Inc()
	r.httpLatency.WithLabelValues(method, routeLabel).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
