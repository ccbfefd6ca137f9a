package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInterval    = time.Second
	defaultSinkTimeout = 5 * time.Second
)

// Config controls sampling.
type Config struct {
	Interval    time.Duration
	SinkTimeout time.Duration
	Logger      *zap.Logger
}

// Monitor samples a Source on a fixed interval until stopped, then emits one
// final snapshot and closes its sinks.
type Monitor struct {
	cfg    Config
	source Source
	sinks  []Sink
	logger *zap.Logger

	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor builds a Monitor; call Run to start sampling.
func NewMonitor(cfg Config, source Source, sinks ...Sink) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		cfg:    cfg,
		source: source,
		sinks:  append([]Sink(nil), sinks...),
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run samples until Stop is called or ctx ends. It emits the final snapshot
// before returning.
func (m *Monitor) Run(ctx context.Context) {
	started := false
	m.startOnce.Do(func() { started = true })
	if !started {
		<-m.doneCh
		return
	}
	defer close(m.doneCh)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.emit(m.source.Snapshot())
	for {
		select {
		case <-ticker.C:
			m.emit(m.source.Snapshot())
		case <-m.stopCh:
			m.finish()
			return
		case <-ctx.Done():
			m.finish()
			return
		}
	}
}

// Stop signals Run to emit the final snapshot and waits for it, bounded by
// ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress monitor stop wait: %w", ctx.Err())
	}
}

func (m *Monitor) finish() {
	snap := m.source.Snapshot()
	snap.Final = true
	m.emit(snap)
	for _, sink := range m.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SinkTimeout)
		if err := sink.Close(ctx); err != nil {
			m.logger.Warn("progress sink close failed", zap.Error(err))
		}
		cancel()
	}
}

func (m *Monitor) emit(snap Snapshot) {
	for _, sink := range m.sinks {
		if sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SinkTimeout)
		if err := sink.Consume(ctx, snap); err != nil {
			m.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}
