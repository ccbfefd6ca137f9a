// Package memory provides an in-process page store for tests and dry runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/PeakJoy/gzxspider/internal/crawler"
)

// ErrClosed is returned by SavePage after Close.
var ErrClosed = errors.New("memory page store closed")

// PageStore keeps records in a slice.
type PageStore struct {
	mu     sync.Mutex
	pages  []crawler.PageRecord
	closed bool
}

// NewPageStore returns an empty store.
func NewPageStore() *PageStore {
	return &PageStore{}
}

// SavePage appends rec.
func (s *PageStore) SavePage(_ context.Context, rec crawler.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.pages = append(s.pages, rec)
	return nil
}

// Pages returns a copy of the stored records in insertion order.
func (s *PageStore) Pages() []crawler.PageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawler.PageRecord(nil), s.pages...)
}

// Close marks the store closed.
func (s *PageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
