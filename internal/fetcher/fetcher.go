// Package fetcher retrieves pages over HTTP with colly and normalizes their
// text encoding to UTF-8.
package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/PeakJoy/gzxspider/internal/crawler"
	"github.com/PeakJoy/gzxspider/internal/metrics"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; rv:25.0) Gecko/20100101 Firefox/25.0"

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024
)

// ErrStatus marks responses with a 4xx or 5xx status.
var ErrStatus = errors.New("http error status")

// Config controls collector behavior.
type Config struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.ParseHTTPErrorResponse(),
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch performs one GET and returns the body re-encoded as UTF-8. Transport
// and status failures are logged as errors, decode failures as warnings.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResult, error) {
	var (
		result   crawler.FetchResult
		headers  http.Header
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, &result, &headers, &fetchErr)

	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		f.logger.Error("fetch failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveFetch(rawURL, "transport_error", 0)
		return crawler.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	result.Duration = time.Since(start)
	if result.StatusCode >= http.StatusBadRequest {
		f.logger.Error("fetch failed",
			zap.String("url", rawURL),
			zap.Int("status_code", result.StatusCode),
		)
		metrics.ObserveFetch(rawURL, "http_error", 0)
		return crawler.FetchResult{}, fmt.Errorf("fetch %s: %w %d", rawURL, ErrStatus, result.StatusCode)
	}

	body, err := maybeGunzip(headers, result.Body, f.cfg.MaxBodyBytes)
	if err != nil {
		f.logger.Warn("gzip decode failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveFetch(rawURL, "decode_error", 0)
		return crawler.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	decoded, enc, err := Decode(body)
	if err != nil {
		f.logger.Warn("decode failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveFetch(rawURL, "decode_error", 0)
		return crawler.FetchResult{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	result.Body = decoded
	result.Encoding = enc
	metrics.ObserveFetch(rawURL, "ok", len(decoded))
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	result *crawler.FetchResult,
	headers *http.Header,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "*/*")
		r.Headers.Set("Accept-Language", "zh-cn,zh;q=0.8,en-us;q=0.5,en;q=0.3")
		r.Headers.Set("Connection", "keep-alive")
		r.Headers.Set("User-Agent", f.cfg.UserAgent)
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
		if r.Headers != nil {
			*headers = r.Headers.Clone()
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

// maybeGunzip inflates bodies still flagged as gzip that carry the gzip
// magic bytes. Bodies the transport already inflated pass through.
func maybeGunzip(headers http.Header, body []byte, limit int) ([]byte, error) {
	if !strings.Contains(strings.ToLower(headers.Get("Content-Encoding")), "gzip") {
		return body, nil
	}
	if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip header: %v", ErrDecode, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("%w: gzip body: %v", ErrDecode, err)
	}
	return out, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
