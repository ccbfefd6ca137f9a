package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeakJoy/gzxspider/internal/crawler"
	"github.com/PeakJoy/gzxspider/internal/storage/memory"
	"github.com/PeakJoy/gzxspider/internal/storage/sqlite"
)

func TestOpenSelectsDriver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := Open(ctx, Config{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.PageStore{}, store)
	require.NoError(t, store.Close())

	store, err = Open(ctx, Config{Path: filepath.Join(t.TempDir(), "htmldb.db3")})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.PageStore{}, store)
	require.NoError(t, store.SavePage(ctx, crawler.PageRecord{URL: "http://a.test/"}))
	require.NoError(t, store.Close())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{Driver: "mongo"})
	require.ErrorContains(t, err, "unknown storage driver")

	_, err = Open(context.Background(), Config{Driver: DriverPostgres})
	require.ErrorContains(t, err, "storage.dsn is required")
}
