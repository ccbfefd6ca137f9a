package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/PeakJoy/gzxspider/internal/crawler"
)

func TestSavePageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "htmls")
	require.NoError(t, err)

	rec := crawler.PageRecord{URL: "https://example.com", Keys: "foo bar", HTML: "<html></html>"}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO htmls (url, keys, html) VALUES ($1, $2, $3)")).
		WithArgs(rec.URL, rec.Keys, rec.HTML).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SavePage(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePagePropagatesError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "")
	require.NoError(t, err)

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO htmls").
		WithArgs("https://example.com", "", "").
		WillReturnError(boom)

	err = store.SavePage(context.Background(), crawler.PageRecord{URL: "https://example.com"})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePageRequiresOneRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "pages")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO pages").
		WithArgs("u", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	require.Error(t, store.SavePage(context.Background(), crawler.PageRecord{URL: "u"}))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPageStoreWithPool(mock, "htmls")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS htmls").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPageStoreValidation(t *testing.T) {
	t.Parallel()

	_, err := NewPageStore(context.Background(), PageStoreConfig{})
	require.Error(t, err)

	_, err = NewPageStore(context.Background(), PageStoreConfig{DSN: "postgres://localhost/db", Table: "bad-name"})
	require.Error(t, err)

	_, err = NewPageStoreWithPool(nil, "htmls")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewPageStoreWithPool(mock, "drop table;")
	require.Error(t, err)
}
