package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PeakJoy/gzxspider/internal/config"
)

type fakeRunner struct {
	runErr   error
	closeErr error
	ran      bool
	closed   bool
}

func (f *fakeRunner) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return f.closeErr
}

// stubRunner swaps newRunner for the duration of the test and records the
// configuration it was called with.
func stubRunner(t *testing.T, r *fakeRunner, initErr error) *config.Config {
	t.Helper()
	var got config.Config
	orig := newRunner
	newRunner = func(_ context.Context, cfg config.Config, _ io.Writer) (runner, error) {
		got = cfg
		if initErr != nil {
			return nil, initErr
		}
		return r, nil
	}
	t.Cleanup(func() { newRunner = orig })
	return &got
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd(viper.New())
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestCrawlCommandMapsFlags(t *testing.T) {
	r := &fakeRunner{}
	got := stubRunner(t, r, nil)

	err := execute(t, "crawl",
		"--url", " http://www.sina.com.cn/ ",
		"--depth", "3",
		"--threads", "25",
		"--keys", "新闻 体育",
		"--db", "news.db3",
		"--log-file", "news.log",
	)
	require.NoError(t, err)
	assert.True(t, r.ran)
	assert.True(t, r.closed)

	assert.Equal(t, "http://www.sina.com.cn/", got.Crawler.StartURL)
	assert.Equal(t, 3, got.Crawler.Depth)
	assert.Equal(t, 25, got.Crawler.Workers)
	assert.Equal(t, "新闻 体育", got.Crawler.Keywords)
	assert.Equal(t, "sqlite", got.Storage.Driver)
	assert.Equal(t, "news.db3", got.Storage.Path)
	assert.Equal(t, "news.log", got.Logging.File)
	assert.Equal(t, 500*time.Millisecond, got.Pool.PollTimeout)
}

func TestCrawlCommandDefaults(t *testing.T) {
	r := &fakeRunner{}
	got := stubRunner(t, r, nil)

	require.NoError(t, execute(t, "crawl", "-u", "https://example.com/", "-d", "1"))
	assert.Equal(t, 10, got.Crawler.Workers)
	assert.Equal(t, "htmldb.db3", got.Storage.Path)
	assert.Equal(t, "spider.log", got.Logging.File)
	assert.Empty(t, got.Crawler.Keywords)
	assert.Empty(t, got.Server.Addr)
}

func TestCrawlCommandReadsConfigFile(t *testing.T) {
	r := &fakeRunner{}
	got := stubRunner(t, r, nil)

	path := filepath.Join(t.TempDir(), "gzx.yaml")
	yaml := `
crawler:
  start_url: https://example.org/
  depth: 4
  workers: 7
storage:
  driver: memory
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	require.NoError(t, execute(t, "crawl", "--config", path, "--threads", "9"))
	assert.Equal(t, "https://example.org/", got.Crawler.StartURL)
	assert.Equal(t, 4, got.Crawler.Depth)
	assert.Equal(t, 9, got.Crawler.Workers, "flags override the config file")
	assert.Equal(t, "memory", got.Storage.Driver)
}

func TestCrawlCommandRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing url", args: []string{"crawl", "-d", "1"}, want: "crawler.start_url"},
		{name: "bad url", args: []string{"crawl", "-u", "www.example.com", "-d", "1"}, want: "not a url"},
		{name: "zero depth", args: []string{"crawl", "-u", "http://example.com/"}, want: "crawler.depth"},
		{name: "too many threads", args: []string{"crawl", "-u", "http://example.com/", "-d", "1", "-t", "501"}, want: "crawler.workers"},
		{name: "bad db name", args: []string{"crawl", "-u", "http://example.com/", "-d", "1", "--db", "a/b.db3"}, want: "storage.path"},
		{name: "bad keys", args: []string{"crawl", "-u", "http://example.com/", "-d", "1", "-k", "a;b"}, want: "crawler.keywords"},
		{name: "missing config file", args: []string{"crawl", "--config", "/nonexistent/gzx.yaml"}, want: "read config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{}
			stubRunner(t, r, nil)
			err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.False(t, r.ran)
		})
	}
}

func TestCrawlCommandPropagatesRunErrors(t *testing.T) {
	runErr := errors.New("storage down")
	r := &fakeRunner{runErr: runErr, closeErr: errors.New("close failed")}
	stubRunner(t, r, nil)

	err := execute(t, "crawl", "-u", "http://example.com/", "-d", "1")
	require.ErrorIs(t, err, runErr)
	assert.True(t, r.closed)
}

func TestCrawlCommandReportsCloseError(t *testing.T) {
	r := &fakeRunner{closeErr: errors.New("close failed")}
	stubRunner(t, r, nil)

	err := execute(t, "crawl", "-u", "http://example.com/", "-d", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown")
}

func TestCrawlCommandReportsInitErrors(t *testing.T) {
	stubRunner(t, nil, errors.New("no database"))

	err := execute(t, "crawl", "-u", "http://example.com/", "-d", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize services")
}
