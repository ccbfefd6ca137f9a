package crawler

import (
	"sync/atomic"
	"time"
)

// Stats holds the counters shared by workers and readers.
type Stats struct {
	processed  atomic.Int64
	matched    atomic.Int64
	dispatched atomic.Int64
	depth      atomic.Int64
	startNanos atomic.Int64
	stopNanos  atomic.Int64
}

func (s *Stats) start(now time.Time) {
	s.startNanos.Store(now.UnixNano())
	s.stopNanos.Store(0)
	s.depth.Store(1)
}

func (s *Stats) stop(now time.Time) {
	s.stopNanos.Store(now.UnixNano())
}

// Processed reports fetch tasks completed, successful or not.
func (s *Stats) Processed() int64 { return s.processed.Load() }

// Matched reports pages that passed the keyword filter.
func (s *Stats) Matched() int64 { return s.matched.Load() }

// Dispatched reports tasks handed to the pool.
func (s *Stats) Dispatched() int64 { return s.dispatched.Load() }

// Depth reports the level currently being crawled.
func (s *Stats) Depth() int { return int(s.depth.Load()) }

// Elapsed reports wall time since the run started, frozen once it stopped.
func (s *Stats) Elapsed(now time.Time) time.Duration {
	started := s.startNanos.Load()
	if started == 0 {
		return 0
	}
	if stopped := s.stopNanos.Load(); stopped != 0 {
		return time.Duration(stopped - started)
	}
	return now.Sub(time.Unix(0, started))
}
