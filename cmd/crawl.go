// Package cmd defines the gzxspider command line.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/PeakJoy/gzxspider/internal/app"
	"github.com/PeakJoy/gzxspider/internal/config"
)

// runner is the slice of *app.App the crawl command drives.
type runner interface {
	Run(ctx context.Context) error
	Close() error
}

// newRunner is replaced in tests.
var newRunner = func(ctx context.Context, cfg config.Config, out io.Writer) (runner, error) {
	return app.New(ctx, cfg, app.Options{Out: out})
}

// flagKeys maps each crawl flag to its configuration key.
var flagKeys = map[string]string{
	"url":      "crawler.start_url",
	"depth":    "crawler.depth",
	"threads":  "crawler.workers",
	"keys":     "crawler.keywords",
	"db":       "storage.path",
	"driver":   "storage.driver",
	"dsn":      "storage.dsn",
	"log-file": "logging.file",
	"addr":     "server.addr",
	"dev":      "logging.development",
}

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from a start URL down to a fixed depth",
		Example: `  gzxspider crawl --url http://www.sina.com.cn --depth 2 --keys "新闻 体育"
  gzxspider crawl -u https://example.com -d 3 -t 50 --db pages.db3`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.StringP("url", "u", "", "start URL (http or https, at most 2048 characters)")
	flags.IntP("depth", "d", 0, "number of levels to crawl, counting the start page as level 1")
	flags.IntP("threads", "t", 10, "number of concurrent workers (1-500)")
	flags.StringP("keys", "k", "", "space separated keywords matched against meta content; empty keeps every page")
	flags.String("db", "htmldb.db3", "SQLite database file name")
	flags.String("driver", "sqlite", "page store driver: sqlite, postgres or memory")
	flags.String("dsn", "", "Postgres connection string for the postgres driver")
	flags.String("log-file", "spider.log", "log file name; empty logs to stderr only")
	flags.String("addr", "", "status server listen address; empty disables it")
	flags.Bool("dev", false, "development logging")

	for name, key := range flagKeys {
		mustBind(v, key, flags.Lookup(name))
	}
	return cmd
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func runCrawl(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.FromViper(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	r, err := newRunner(cmd.Context(), cfg, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	runErr := r.Run(cmd.Context())
	closeErr := r.Close()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("shutdown: %w", closeErr)
	}
	return nil
}
