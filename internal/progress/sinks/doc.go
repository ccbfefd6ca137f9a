// Package sinks implements progress consumers: the console status box,
// structured logging, and Prometheus gauges. Each sink satisfies
// progress.Sink.
package sinks
