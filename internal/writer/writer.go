// Package writer is the single consumer that moves page records from the
// crawl workers into the page store.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PeakJoy/gzxspider/internal/crawler"
	"github.com/PeakJoy/gzxspider/internal/metrics"
	"github.com/PeakJoy/gzxspider/internal/queue/memory"
	"github.com/PeakJoy/gzxspider/internal/storage"
)

// ErrPendingRecords is returned by Close when records were never flushed.
var ErrPendingRecords = errors.New("writer closed with unflushed records")

// Writer buffers records from many producers and writes them one row at a
// time on Flush. Only one flush runs at once.
type Writer struct {
	store  storage.PageStore
	queue  *memory.Queue[crawler.PageRecord]
	logger *zap.Logger

	flushMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New wraps store.
func New(store storage.PageStore, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:  store,
		queue:  memory.NewQueue[crawler.PageRecord](),
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Enqueue hands a record over without blocking.
func (w *Writer) Enqueue(rec crawler.PageRecord) error {
	if err := w.queue.Enqueue(rec); err != nil {
		return fmt.Errorf("enqueue page record: %w", err)
	}
	metrics.SetWriterQueueDepth(w.queue.Len())
	return nil
}

// Pending reports records waiting for a flush.
func (w *Writer) Pending() int {
	return w.queue.Len()
}

// Flush writes every queued record and returns how many were committed. On
// a store failure the failed record and everything after it go back to the
// front of the queue and the error wraps crawler.ErrStorage.
func (w *Writer) Flush(ctx context.Context) (int, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	batch := w.queue.Drain()
	defer func() { metrics.SetWriterQueueDepth(w.queue.Len()) }()
	for i, rec := range batch {
		if err := ctx.Err(); err != nil {
			w.requeue(batch[i:])
			return i, fmt.Errorf("flush canceled: %w", err)
		}
		if err := w.store.SavePage(ctx, rec); err != nil {
			metrics.ObserveStorageError()
			w.requeue(batch[i:])
			metrics.ObservePersisted(i)
			return i, fmt.Errorf("%w: save %s: %w", crawler.ErrStorage, rec.URL, err)
		}
	}
	metrics.ObservePersisted(len(batch))
	return len(batch), nil
}

// Start flushes every interval on a background goroutine until ctx ends or
// Close is called. Flush errors are logged; the records stay queued.
func (w *Writer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 || w.doneCh != nil {
		return
	}
	w.doneCh = make(chan struct{})
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				if n, err := w.Flush(ctx); err != nil {
					w.logger.Error("background flush failed", zap.Int("flushed", n), zap.Error(err))
				}
			}
		}
	}()
}

// Close stops the background flusher and releases the store. Records still
// queued are reported as ErrPendingRecords. It is safe to call more than
// once.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.stopOnce.Do(func() { close(w.stopCh) })
		if w.doneCh != nil {
			<-w.doneCh
		}
		w.flushMu.Lock()
		w.queue.Close()
		pending := w.queue.Len()
		w.flushMu.Unlock()

		var errs []error
		if err := w.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		if pending > 0 {
			w.logger.Error("writer closed with unflushed records", zap.Int("pending", pending))
			errs = append(errs, fmt.Errorf("%w: %d", ErrPendingRecords, pending))
		}
		w.closeErr = errors.Join(errs...)
	})
	return w.closeErr
}

func (w *Writer) requeue(recs []crawler.PageRecord) {
	if err := w.queue.PushFront(recs...); err != nil {
		w.logger.Error("requeue page records failed", zap.Int("records", len(recs)), zap.Error(err))
	}
}
