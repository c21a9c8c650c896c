// Package metrics exposes the Prometheus registry used by the CAS client.
// All metrics are defined in their respective packages (client, pagination,
// enrich, cache, view, casapi) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the /metrics handler and documents every metric.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the CAS client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving the registered metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - cas_requests_total{endpoint, status} (Counter): Requests by endpoint template and HTTP status
//   - cas_request_duration_seconds{method} (Histogram): Request duration by HTTP method
//   - cas_errors_total{class} (Counter): Errors by class (client, server, network)
//
// Pagination Metrics (pkg/pagination):
//   - cas_pages_fetched_total{shape} (Counter): Collection pages by response shape (array, envelope, object)
//   - cas_drains_total{result} (Counter): Drains by result (ok, error, cursor_loop, page_budget)
//   - cas_drain_duration_seconds (Histogram): Duration of a full drain
//
// Enrichment Metrics (pkg/enrich):
//   - cas_enrichment_fetches_total{kind, result} (Counter): Backfill fetches (resolved, miss, skipped)
//
// Label Cache Metrics (pkg/cache):
//   - cas_label_cache_ops_total{op, result} (Counter): Claim/put/labels/reset operations
//   - cas_label_cache_errors_total{op} (Counter): Redis errors by operation
//
// Page Metrics (pkg/view):
//   - cas_page_loads_total{page, result} (Counter): Dashboard page loads (loaded, failed)
//
// Action Metrics (pkg/casapi):
//   - cas_actions_total{action, result} (Counter): Write operations (ok, error)
//   - cas_action_duration_seconds{action} (Histogram): Write operation duration
//
// Example Prometheus Queries:
//
//   # Failed page load rate
//   sum(rate(cas_page_loads_total{result="failed"}[5m])) by (page)
//
//   # Enrichment miss ratio
//   sum(rate(cas_enrichment_fetches_total{result="miss"}[5m])) /
//   sum(rate(cas_enrichment_fetches_total[5m]))
//
//   # P95 drain latency
//   histogram_quantile(0.95, rate(cas_drain_duration_seconds_bucket[5m]))
