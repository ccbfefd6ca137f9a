// Package progress periodically samples crawl state and fans the snapshots
// out to pluggable sinks such as the console status box, structured logs, or
// Prometheus gauges. Sampling never mutates the crawl.
package progress
