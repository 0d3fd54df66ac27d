// Package metrics provides Prometheus instrumentation for the portfolio engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesRecorded counts trades accepted into the ledger, partitioned by action.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbull_trades_recorded_total",
		Help: "Total number of trades accepted into the ledger",
	}, []string{"action"})

	// TradesRejected counts trades refused at intake, partitioned by reason.
	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbull_trades_rejected_total",
		Help: "Trades refused at intake",
	}, []string{"reason"})

	// ValuationPasses counts full portfolio valuation passes.
	ValuationPasses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbull_valuation_passes_total",
		Help: "Total number of full valuation passes",
	})

	// ValuationDuration tracks how long a full valuation pass takes.
	ValuationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paperbull_valuation_duration_seconds",
		Help:    "Full valuation pass duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// PriceFetches counts upstream price requests, partitioned by kind (spot or history).
	PriceFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbull_price_fetches_total",
		Help: "Upstream price requests issued",
	}, []string{"kind"})

	// PriceFetchFailures counts upstream price requests that returned no usable data.
	PriceFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbull_price_fetch_failures_total",
		Help: "Upstream price requests that failed or returned no data",
	})

	// QuoteCacheHits counts quote lookups served from the cache.
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbull_quote_cache_hits_total",
		Help: "Quote lookups served from cache",
	})

	// QuoteCacheMisses counts quote lookups that fell through to the upstream source.
	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperbull_quote_cache_misses_total",
		Help: "Quote lookups that fell through to the upstream source",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paperbull_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperbull_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paperbull_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
