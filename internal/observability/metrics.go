package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Store queries by query name and status. Watch for: error vs success ratio.
	DBQueriesTotal *prometheus.CounterVec

	// Failed store queries by query name and error category. Watch for: busy or unavailable bursts.
	DBQueryErrorsTotal *prometheus.CounterVec

	// Store query latency. Watch for: p95 growth as the measurement table grows.
	DBQueryDuration *prometheus.HistogramVec

	// Sessions currently holding a dedicated connection. Should return to 0 between requests.
	DBSessionsOpen prometheus.Gauge

	// Store recovery probes by result. Watch for: repeated failures before exhaustion.
	StoreRecoveryAttemptsTotal *prometheus.CounterVec

	// Requests still running when graceful shutdown began.
	ShutdownInFlightRequests prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	DBQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbQueriesTotal",
			Help: "Total number of store queries",
		},
		[]string{"query", "status"},
	)
	DBQueryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbQueryErrorsTotal",
			Help: "Failed store queries by error category",
		},
		[]string{"query", "category"},
	)
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbQueryDurationSeconds",
			Help:    "Store query latency in seconds, including row scanning",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)
	DBSessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dbSessionsOpen",
			Help: "Number of store sessions currently holding a connection",
		},
	)
	StoreRecoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeRecoveryAttemptsTotal",
			Help: "Store recovery probes while degraded, by result",
		},
		[]string{"result"},
	)

	ShutdownInFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shutdownInFlightRequests",
			Help: "In-flight requests observed when graceful shutdown started",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		DBQueriesTotal, DBQueryErrorsTotal, DBQueryDuration, DBSessionsOpen,
		StoreRecoveryAttemptsTotal, ShutdownInFlightRequests,
	)
}

// RecordQuery records the outcome and latency of one store query.
func RecordQuery(query string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueriesTotal.WithLabelValues(query, status).Inc()
	DBQueryDuration.WithLabelValues(query).Observe(seconds)
}

// RecordQueryError counts one failed store query under its error category.
func RecordQueryError(query, category string) {
	DBQueryErrorsTotal.WithLabelValues(query, category).Inc()
}

// RecordShutdownInFlight records how many requests were in flight when shutdown started.
func RecordShutdownInFlight(n int64) {
	ShutdownInFlightRequests.Set(float64(n))
}

// RecordRecoveryAttempt counts one store recovery probe.
func RecordRecoveryAttempt(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	StoreRecoveryAttemptsTotal.WithLabelValues(result).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
