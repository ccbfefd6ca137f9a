// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal            *prometheus.CounterVec
	crawlerBytesTotal            *prometheus.CounterVec
	crawlerLinksDiscoveredTotal  prometheus.Counter
	crawlerRecordsPersistedTotal prometheus.Counter
	crawlerStorageErrorsTotal    prometheus.Counter
	crawlerActiveWorkers         prometheus.Gauge
	crawlerWriterQueueDepth      prometheus.Gauge
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of decoded bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerLinksDiscoveredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_links_discovered_total",
				Help: "Links admitted to the next crawl level.",
			},
		)

		crawlerRecordsPersistedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_records_persisted_total",
				Help: "Page records committed to the store.",
			},
		)

		crawlerStorageErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_storage_errors_total",
				Help: "Failed page record writes.",
			},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently executing a task.",
			},
		)

		crawlerWriterQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_writer_queue_depth",
				Help: "Page records waiting for the next flush.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch outcome and the bytes it produced.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveLinksAdmitted adds newly admitted frontier links.
func ObserveLinksAdmitted(n int) {
	Init()
	if n > 0 {
		crawlerLinksDiscoveredTotal.Add(float64(n))
	}
}

// ObservePersisted counts committed page records.
func ObservePersisted(n int) {
	Init()
	if n > 0 {
		crawlerRecordsPersistedTotal.Add(float64(n))
	}
}

// ObserveStorageError counts a failed page record write.
func ObserveStorageError() {
	Init()
	crawlerStorageErrorsTotal.Inc()
}

// SetWriterQueueDepth records the number of records awaiting a flush.
func SetWriterQueueDepth(n int) {
	Init()
	crawlerWriterQueueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	crawlerActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
