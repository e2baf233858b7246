// Package metrics is the reference for every Prometheus metric the client
// exports. Metrics are defined in their owning packages (client, ratelimit,
// pagination) and registered with promauto on the default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - cratesio_requests_total{endpoint, status} (Counter): requests by logical endpoint and HTTP status
//     ("network_error" when no response was received)
//   - cratesio_request_duration_seconds{endpoint} (Histogram): duration including the rate gate wait
//   - cratesio_errors_total{class} (Counter): errors by class (client, server, network, decode)
//
// Rate Gate Metrics (pkg/ratelimit):
//   - cratesio_rate_gate_wait_seconds (Histogram): time slept to honour the minimum interval
//   - cratesio_rate_gate_slot_errors_total{operation} (Counter): Redis slot failures (lock, read, unlock, lease)
//
// Pagination Metrics (pkg/pagination):
//   - cratesio_pages_fetched_total{collection, outcome} (Counter): page fetches (items, empty, error)
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(cratesio_errors_total[5m])
//
//   # Share of time spent waiting on the gate
//   rate(cratesio_rate_gate_wait_seconds_sum[5m]) / rate(cratesio_request_duration_seconds_sum[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(cratesio_request_duration_seconds_bucket[5m]))
