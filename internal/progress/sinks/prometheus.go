package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PeakJoy/gzxspider/internal/progress"
)

// PrometheusSink mirrors snapshots into gauges.
type PrometheusSink struct {
	depth     prometheus.Gauge
	workers   prometheus.Gauge
	processed prometheus.Gauge
	matched   prometheus.Gauge
	elapsed   prometheus.Gauge
	running   prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_current_depth",
			Help: "Crawl level currently being fetched.",
		}),
		workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pool_workers",
			Help: "Live workers in the pool.",
		}),
		processed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_processed_urls",
			Help: "URLs processed by the current run.",
		}),
		matched: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_matched_urls",
			Help: "URLs whose page matched the keyword query.",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_elapsed_seconds",
			Help: "Wall time since the run started.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_running",
			Help: "1 while a crawl run is in progress.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.depth,
		s.workers,
		s.processed,
		s.matched,
		s.elapsed,
		s.running,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the gauges from snap.
func (s *PrometheusSink) Consume(_ context.Context, snap progress.Snapshot) error {
	s.depth.Set(float64(snap.Depth))
	s.workers.Set(float64(snap.Workers))
	s.processed.Set(float64(snap.Processed))
	s.matched.Set(float64(snap.Matched))
	s.elapsed.Set(snap.Elapsed.Seconds())
	if snap.Running {
		s.running.Set(1)
	} else {
		s.running.Set(0)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
