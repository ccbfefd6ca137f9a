// Package api hosts the optional status server for a running crawl.
// Routes:
//   - GET /healthz and /readyz for liveness and readiness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for the live crawl snapshot as JSON.
package api
