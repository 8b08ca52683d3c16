// Package metrics provides the centralized Prometheus metrics registry for
// the TechDirect client. All metrics are defined in their respective packages
// (client, token, ratelimit, cache, bulk) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the TechDirect client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Token Metrics (pkg/token):
//   - dellapi_token_exchanges_total{outcome} (Counter): OAuth2 token exchanges by outcome (success, failure)
//   - dellapi_token_invalidations_total (Counter): Tokens discarded before natural expiry
//
// Rate Limit Metrics (pkg/ratelimit):
//   - dellapi_rate_limit_admitted_total (Counter): Requests admitted within the window
//   - dellapi_rate_limit_rejected_total (Counter): Requests rejected at the window limit
//   - dellapi_rate_limit_remaining (Gauge): Admission slots currently remaining
//
// Cache Metrics (pkg/cache):
//   - dellapi_cache_hits_total (Counter): Lookups served from Redis
//   - dellapi_cache_misses_total (Counter): Lookups that fell through to the vendor
//   - dellapi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - dellapi_requests_total{endpoint, status} (Counter): Vendor requests by endpoint and HTTP status
//   - dellapi_request_duration_seconds{endpoint} (Histogram): Vendor request duration by endpoint
//   - dellapi_errors_total{kind} (Counter): Errors by kind (authentication, rate_limited, not_found, upstream, network)
//   - dellapi_reauth_retries_total (Counter): Lookups retried after a 401 token refresh
//
// Bulk Metrics (pkg/bulk):
//   - dellapi_bulk_batches_total (Counter): Batches dispatched by the orchestrator
//   - dellapi_bulk_lookups_total{result} (Counter): Bulk lookups by result (success, failure)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(dellapi_cache_hits_total[5m])) /
//   (sum(rate(dellapi_cache_hits_total[5m])) + sum(rate(dellapi_cache_misses_total[5m])))
//
//   # Rate Limit Headroom
//   dellapi_rate_limit_remaining < 10
//
//   # Request Error Rate
//   rate(dellapi_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(dellapi_request_duration_seconds_bucket[5m]))
//
//   # Re-Authentication Rate
//   rate(dellapi_reauth_retries_total[5m]) / rate(dellapi_requests_total[5m])
