// Package config loads the spider configuration from file, environment and
// flags, and validates the run parameters before anything is started.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. GZX_CRAWLER_DEPTH=3.
const EnvPrefix = "GZX"

// Input limits for the run parameters, counted in characters.
const (
	MaxURLLength      = 2048
	MaxWorkers        = 500
	MaxFileNameLength = 32
	MaxKeywordsLength = 64
)

var (
	urlPattern      = regexp.MustCompile(`^https?://([a-zA-Z0-9.\-]+/?)+([^/].)*`)
	fileNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-.]+$`)
	keywordsPattern = regexp.MustCompile(`^[\p{L}\p{N}_ ]+$`)
)

// CrawlerConfig holds the crawl run parameters.
type CrawlerConfig struct {
	StartURL       string        `mapstructure:"start_url"`
	Depth          int           `mapstructure:"depth"`
	Workers        int           `mapstructure:"workers"`
	Keywords       string        `mapstructure:"keywords"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// PoolConfig tunes worker idleness detection.
type PoolConfig struct {
	PollTimeout   time.Duration `mapstructure:"poll_timeout"`
	IdleThreshold int           `mapstructure:"idle_threshold"`
	IdleCap       int           `mapstructure:"idle_cap"`
}

// StorageConfig selects the page store.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// WriterConfig controls background flushing. A zero interval flushes only
// at level boundaries.
type WriterConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// MonitorConfig controls the progress reporter.
type MonitorConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ServerConfig controls the optional status server. An empty address
// disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
}

// Config is the root configuration.
type Config struct {
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Storage StorageConfig `mapstructure:"storage"`
	Writer  WriterConfig  `mapstructure:"writer"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Load reads configuration from an optional file plus GZX_* environment
// variables and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("crawler.start_url", "")
	v.SetDefault("crawler.depth", 0)
	v.SetDefault("crawler.workers", 10)
	v.SetDefault("crawler.keywords", "")
	v.SetDefault("crawler.user_agent", "")
	v.SetDefault("crawler.request_timeout", "30s")
	v.SetDefault("crawler.max_body_bytes", 10*1024*1024)

	v.SetDefault("pool.poll_timeout", "500ms")
	v.SetDefault("pool.idle_threshold", 2)
	v.SetDefault("pool.idle_cap", 10)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "htmldb.db3")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.table", "htmls")

	v.SetDefault("writer.flush_interval", "0s")

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", "5s")

	v.SetDefault("server.addr", "")

	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "spider.log")
}

func (c *Config) normalize() {
	c.Crawler.StartURL = strings.TrimSpace(c.Crawler.StartURL)
	c.Crawler.Keywords = strings.TrimSpace(c.Crawler.Keywords)
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Storage.Path = strings.TrimSpace(c.Storage.Path)
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}

// Validate enforces the run parameter rules. The first violation is
// returned, naming the offending key.
func (c Config) Validate() error {
	if err := validateStartURL(c.Crawler.StartURL); err != nil {
		return err
	}
	if c.Crawler.Depth <= 0 {
		return fmt.Errorf("crawler.depth must be greater than zero, got %d", c.Crawler.Depth)
	}
	if c.Crawler.Workers <= 0 || c.Crawler.Workers > MaxWorkers {
		return fmt.Errorf("crawler.workers must be between 1 and %d, got %d", MaxWorkers, c.Crawler.Workers)
	}
	if c.Crawler.Keywords != "" {
		if utf8.RuneCountInString(c.Crawler.Keywords) > MaxKeywordsLength {
			return fmt.Errorf("crawler.keywords must be at most %d characters", MaxKeywordsLength)
		}
		if !keywordsPattern.MatchString(c.Crawler.Keywords) {
			return errors.New("crawler.keywords may only contain letters, digits, underscores and spaces")
		}
	}
	switch c.Storage.Driver {
	case "", "sqlite":
		if err := validateFileName("storage.path", c.Storage.Path); err != nil {
			return err
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Logging.File != "" {
		if err := validateFileName("logging.file", c.Logging.File); err != nil {
			return err
		}
	}
	if c.Pool.IdleThreshold < 0 {
		return fmt.Errorf("pool.idle_threshold must not be negative, got %d", c.Pool.IdleThreshold)
	}
	if c.Writer.FlushInterval < 0 {
		return errors.New("writer.flush_interval must not be negative")
	}
	return nil
}

func validateStartURL(raw string) error {
	if raw == "" {
		return errors.New("crawler.start_url is required")
	}
	if utf8.RuneCountInString(raw) > MaxURLLength {
		return fmt.Errorf("crawler.start_url must be shorter than %d characters", MaxURLLength)
	}
	if m := urlPattern.FindString(raw); len(m) != len(raw) {
		return fmt.Errorf("crawler.start_url %q is not a url", raw)
	}
	return nil
}

func validateFileName(key, name string) error {
	if name == "" {
		return fmt.Errorf("%s is required", key)
	}
	if utf8.RuneCountInString(name) > MaxFileNameLength {
		return fmt.Errorf("%s must be at most %d characters", key, MaxFileNameLength)
	}
	if !fileNamePattern.MatchString(name) {
		return fmt.Errorf("%s %q has illegal characters", key, name)
	}
	return nil
}
