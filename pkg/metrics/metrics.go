// Package metrics exposes the Prometheus registry used by the gateway.
// Metrics themselves are declared with promauto next to the code that
// records them (upstream, fanout, cache, gateway); this package only
// documents them and serves the scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every promauto metric in this module lands in.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Upstream client (pkg/upstream):
//   - reservations_upstream_requests_total{endpoint, outcome} (Counter)
//   - reservations_upstream_request_duration_seconds{endpoint} (Histogram)
//   - reservations_upstream_errors_total{kind} (Counter): network, timeout, malformed, upstream_status
//
// Bulk fan-out (pkg/fanout):
//   - reservations_bulk_requests_total (Counter)
//   - reservations_bulk_ids (Histogram): identifiers per bulk request
//   - reservations_bulk_task_failures_total{kind} (Counter)
//   - reservations_bulk_inflight (Gauge): upstream calls currently running
//   - reservations_bulk_duration_seconds (Histogram)
//
// Response cache (pkg/cache):
//   - reservations_cache_hits_total (Counter)
//   - reservations_cache_misses_total (Counter)
//   - reservations_cache_errors_total{operation} (Counter)
//
// HTTP surface (pkg/gateway):
//   - reservations_http_requests_total{route, status} (Counter)
//   - reservations_http_request_duration_seconds{route} (Histogram)
//
// Example queries:
//
//   # Share of bulk lookups that degraded to an empty list
//   sum(rate(reservations_bulk_task_failures_total[5m])) /
//   sum(rate(reservations_upstream_requests_total{endpoint="reservations"}[5m]))
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(reservations_upstream_request_duration_seconds_bucket[5m]))
