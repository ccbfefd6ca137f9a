package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/PeakJoy/gzxspider/internal/progress"
)

// LogSink emits each snapshot as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the snapshot using structured fields.
func (s *LogSink) Consume(_ context.Context, snap progress.Snapshot) error {
	msg := "crawl progress"
	if snap.Final {
		msg = "crawl progress final"
	}
	s.logger.Info(msg,
		zap.Int("depth", snap.Depth),
		zap.Int("workers", snap.Workers),
		zap.String("keys", snap.Keywords),
		zap.Int64("matched", snap.Matched),
		zap.Int64("processed", snap.Processed),
		zap.Duration("elapsed", snap.Elapsed),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
