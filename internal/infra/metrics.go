package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the dashboard backend. Exposed on /metrics.

// UpstreamRequests counts outbound REST calls by service and outcome.
var UpstreamRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Total outbound REST requests",
	},
	[]string{"service", "endpoint", "status"},
)

// UpstreamLatency tracks outbound REST call duration.
var UpstreamLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bitodash",
		Subsystem: "upstream",
		Name:      "request_duration_ms",
		Help:      "Outbound REST request duration in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"service"},
)

// ProviderFallbacks counts market-data chain attempts by provider and outcome.
var ProviderFallbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "finance",
		Name:      "provider_attempts_total",
		Help:      "Market-data provider attempts by outcome",
	},
	[]string{"resource", "provider", "outcome"},
)

// CacheLookups counts market-data cache hits and misses.
var CacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "finance",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result (hit, miss, stale)",
	},
	[]string{"result"},
)

// WSReconnects counts order-book stream reconnect attempts.
var WSReconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "stream",
		Name:      "reconnects_total",
		Help:      "Order-book WebSocket reconnect attempts",
	},
)

// WSFrames counts processed order-book frames, including frames dropped by
// the pair staleness guard.
var WSFrames = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Order-book frames by disposition (applied, stale, ignored)",
	},
	[]string{"disposition"},
)

// HTTPRequests counts inbound API requests.
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bitodash",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Inbound HTTP requests by route and status",
	},
	[]string{"route", "method", "status"},
)

// HTTPLatency tracks inbound request handling time.
var HTTPLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bitodash",
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "Inbound HTTP request duration in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	},
	[]string{"route"},
)
