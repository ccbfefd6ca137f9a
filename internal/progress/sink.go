package progress

import "context"

// Sink consumes snapshots. Implementations must be safe to call from the
// monitor goroutine while the crawl keeps running.
type Sink interface {
	Consume(ctx context.Context, snap Snapshot) error
	Close(ctx context.Context) error
}
