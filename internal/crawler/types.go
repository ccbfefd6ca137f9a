package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/PeakJoy/gzxspider/internal/worker"
)

// ErrStorage marks failures writing page records to the store. A storage
// error is fatal to a crawl run.
var ErrStorage = errors.New("storage failure")

// CrawlTask is one URL to fetch at a given depth. Final-level tasks never
// extract links.
type CrawlTask struct {
	URL          string
	Depth        int
	IsFinalLevel bool
}

// PageRecord is a matched page on its way to the store.
type PageRecord struct {
	URL  string
	Keys string
	HTML string
}

// FetchResult is a fetched page normalized to UTF-8.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Encoding   string
	Duration   time.Duration
}

// Fetcher retrieves a URL. Any returned error means the page is skipped.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// RecordWriter is the hand-off to persistence. Enqueue must not block.
type RecordWriter interface {
	Enqueue(rec PageRecord) error
	Flush(ctx context.Context) (int, error)
	Close() error
}

// TaskPool runs crawl tasks and reports idleness.
type TaskPool interface {
	AddTask(task worker.Task) error
	WaitIdle(ctx context.Context, threshold int) error
	Size() int
	Close()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
