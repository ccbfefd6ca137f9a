package progress

import "time"

// Snapshot is a read-only view of a crawl run.
type Snapshot struct {
	StartURL  string        `json:"start_url"`
	Depth     int           `json:"depth"`
	MaxDepth  int           `json:"max_depth"`
	Workers   int           `json:"workers"`
	Keywords  string        `json:"keywords"`
	Matched   int64         `json:"matched"`
	Processed int64         `json:"processed"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Running   bool          `json:"running"`
	// Final is set on the last snapshot a Monitor emits.
	Final bool `json:"final"`
}

// Source produces snapshots.
type Source interface {
	Snapshot() Snapshot
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Snapshot

// Snapshot implements Source.
func (f SourceFunc) Snapshot() Snapshot { return f() }

// Breakdown splits d into whole days, hours, minutes and seconds.
func Breakdown(d time.Duration) (days, hours, minutes, seconds int) {
	total := int(d / time.Second)
	if total <= 0 {
		return 0, 0, 0, 0
	}
	days = total / 86400
	total %= 86400
	hours = total / 3600
	total %= 3600
	return days, hours, total / 60, total % 60
}
