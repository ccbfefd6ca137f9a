// Package sqlite stores page records in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/PeakJoy/gzxspider/internal/crawler"
)

const (
	defaultPath  = "htmldb.db3"
	defaultTable = "htmls"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config locates the database file.
type Config struct {
	Path  string
	Table string
}

// PageStore appends page records to a SQLite table.
type PageStore struct {
	db    *sql.DB
	table string
}

// Open opens or creates the database file and ensures the table exists.
func Open(ctx context.Context, cfg Config) (*PageStore, error) {
	if cfg.Path == "" {
		cfg.Path = defaultPath
	}
	if cfg.Table == "" {
		cfg.Table = defaultTable
	}
	if !validTableName.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid table name %q", cfg.Table)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT,
	keys TEXT,
	html TEXT
)`, cfg.Table)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create table %s: %w", cfg.Table, err)
	}
	return &PageStore{db: db, table: cfg.Table}, nil
}

// SavePage inserts one row. Each insert commits on its own.
func (s *PageStore) SavePage(ctx context.Context, rec crawler.PageRecord) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite page store is not configured")
	}
	query := fmt.Sprintf("INSERT INTO %s (url, keys, html) VALUES (?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, query, rec.URL, rec.Keys, rec.HTML); err != nil {
		return fmt.Errorf("insert page %s: %w", rec.URL, err)
	}
	return nil
}

// Count reports the number of stored rows.
func (s *PageStore) Count(ctx context.Context) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// ListPages returns every stored row in insertion order.
func (s *PageStore) ListPages(ctx context.Context) ([]crawler.PageRecord, error) {
	query := fmt.Sprintf("SELECT url, keys, html FROM %s ORDER BY id", s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.PageRecord
	for rows.Next() {
		var rec crawler.PageRecord
		if err := rows.Scan(&rec.URL, &rec.Keys, &rec.HTML); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return out, nil
}

// Close releases the database handle.
func (s *PageStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}
