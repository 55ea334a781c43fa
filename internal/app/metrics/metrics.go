package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bookstore",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookstore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	cartMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "cart",
			Name:      "mutations_total",
			Help:      "Cart mutations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	cartMutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookstore",
			Subsystem: "cart",
			Name:      "mutation_duration_seconds",
			Help:      "Duration of cart mutations including lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	stockAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "stock",
			Name:      "adjustments_total",
			Help:      "Stock adjustments applied, split by direction.",
		},
		[]string{"direction"},
	)

	stockUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "stock",
			Name:      "units_total",
			Help:      "Units reserved from or credited back to stock.",
		},
		[]string{"direction"},
	)

	insufficientStock = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "stock",
			Name:      "insufficient_total",
			Help:      "Cart requests refused for lack of stock.",
		},
	)

	sweeperRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookstore",
			Subsystem: "cart",
			Name:      "sweeper_pruned_lines_total",
			Help:      "Dangling cart lines removed by the sweeper.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		cartMutations,
		cartMutationDuration,
		stockAdjustments,
		stockUnits,
		insufficientStock,
		sweeperRuns,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordCartMutation records one cart operation. outcome is "ok" or an error
// code such as INSUFFICIENT_STOCK.
func RecordCartMutation(operation, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "ok"
	}
	if duration <= 0 {
		duration = time.Millisecond
	}
	cartMutations.WithLabelValues(operation, outcome).Inc()
	cartMutationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStockAdjustment records an applied delta. Zero deltas are ignored.
func RecordStockAdjustment(delta int) {
	switch {
	case delta < 0:
		stockAdjustments.WithLabelValues("reserve").Inc()
		stockUnits.WithLabelValues("reserve").Add(float64(-delta))
	case delta > 0:
		stockAdjustments.WithLabelValues("credit").Inc()
		stockUnits.WithLabelValues("credit").Add(float64(delta))
	}
}

func RecordInsufficientStock() {
	insufficientStock.Inc()
}

// RecordSweep records how many dangling lines one sweeper pass removed.
func RecordSweep(pruned int, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	sweeperRuns.WithLabelValues(result).Add(float64(pruned))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath prefers the matched route template so ids do not explode the
// label space. Unmatched paths collapse to their first segment.
func canonicalPath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	trimmed := strings.Trim(r.URL.Path, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "api" || len(parts) == 1 {
		return "/" + parts[0]
	}
	return "/api/" + parts[1]
}
