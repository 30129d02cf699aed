package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the solver and the routine cache.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	solverDuration  prometheus.Observer
	solverRuns      prometheus.Counter
	solverPlaced    prometheus.Histogram
	solverUnplaced  prometheus.Histogram
	solverNodes     prometheus.Histogram
	solverAborted   prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	solverDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_run_duration_seconds",
		Help:    "Wall time of solver runs",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	solverRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solver_runs_total",
		Help: "Total solver runs",
	})

	solverPlaced := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_placed_tasks",
		Help:    "Tasks placed per solver run",
		Buckets: prometheus.LinearBuckets(0, 25, 10),
	})

	solverUnplaced := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_unplaced_tasks",
		Help:    "Tasks left unplaced per solver run",
		Buckets: prometheus.LinearBuckets(0, 5, 10),
	})

	solverNodes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "solver_nodes_explored",
		Help:    "Search nodes explored per solver run",
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})

	solverAborted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "solver_budget_exhausted_total",
		Help: "Solver runs that hit the node budget or deadline",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routine_cache_hits_total",
		Help: "Routine cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routine_cache_misses_total",
		Help: "Routine cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, solverDuration, solverRuns, solverPlaced,
		solverUnplaced, solverNodes, solverAborted, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		solverDuration:  solverDuration,
		solverRuns:      solverRuns,
		solverPlaced:    solverPlaced,
		solverUnplaced:  solverUnplaced,
		solverNodes:     solverNodes,
		solverAborted:   solverAborted,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveSolverRun records one solver invocation.
func (m *MetricsService) ObserveSolverRun(duration time.Duration, placed, unplaced, nodes int, budgetExhausted bool) {
	if m == nil {
		return
	}
	m.solverRuns.Inc()
	m.solverDuration.Observe(duration.Seconds())
	m.solverPlaced.Observe(float64(placed))
	m.solverUnplaced.Observe(float64(unplaced))
	m.solverNodes.Observe(float64(nodes))
	if budgetExhausted {
		m.solverAborted.Inc()
	}
}

// ObserveCacheLookup records a routine cache hit or miss.
func (m *MetricsService) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
