// Package main hosts the gzxspider entrypoint.
//
// Architecture overview:
//   - CLI & config: cobra parses the crawl flags, viper layers them over GZX_* environment variables, an
//     optional YAML file and defaults, and internal/config validates the result before anything starts.
//   - Orchestrator: internal/crawler.Engine seeds the frontier with the start URL and walks it one depth level
//     at a time. Each level is fully drained on the worker pool before the next one is dispatched, and the
//     visited set guarantees a URL is fetched at most once per run.
//   - Worker pool: internal/worker runs tasks on a resizable set of goroutines over one unbounded queue and
//     reports idleness through an in-flight counter confirmed by consecutive empty polls.
//   - Fetch pipeline: the Colly-based fetcher sends a browser-like GET, inflates stray gzip payloads, detects
//     the charset from the first 2048 bytes and re-encodes the page as UTF-8. goquery extracts links and
//     meta content for the keyword match.
//   - Persistence: matching pages are queued on internal/writer and flushed to SQLite (default), Postgres or
//     memory at every level boundary. Storage failures abort the run.
//   - Observability: zap logs carry the run id; the progress monitor prints the console status box and feeds
//     Prometheus gauges; the optional chi status server exposes /healthz, /readyz, /metrics and /v1/status.
//
// Quick checklist:
//   - Run locally: go run . crawl --url http://www.example.com --depth 2 --keys "news"
//   - Environment: GZX_CRAWLER_WORKERS=50, GZX_STORAGE_DRIVER=postgres GZX_STORAGE_DSN=..., GZX_SERVER_ADDR=:8080
//   - Exit status is 1 whenever the crawl or its setup fails.
package main
