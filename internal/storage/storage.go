// Package storage opens the page store selected by configuration. Every
// store persists crawler.PageRecord rows into an append-only table
// (id, url, keys, html).
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/PeakJoy/gzxspider/internal/crawler"
	"github.com/PeakJoy/gzxspider/internal/storage/memory"
	"github.com/PeakJoy/gzxspider/internal/storage/postgres"
	"github.com/PeakJoy/gzxspider/internal/storage/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// PageStore is the write contract the persistence writer depends on.
type PageStore interface {
	SavePage(ctx context.Context, rec crawler.PageRecord) error
	Close() error
}

// Config selects and configures a store.
type Config struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// Open returns the store for cfg.Driver.
func Open(ctx context.Context, cfg Config) (PageStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.Path, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case DriverPostgres:
		store, err := postgres.NewPageStore(ctx, postgres.PageStoreConfig{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	case DriverMemory:
		return memory.NewPageStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
