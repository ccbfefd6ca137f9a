package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/PeakJoy/gzxspider/internal/metrics"
	"github.com/PeakJoy/gzxspider/internal/progress"
)

const defaultIdleThreshold = 2

// Config describes one crawl run.
type Config struct {
	StartURL string
	MaxDepth int
	Keywords string
	// IdleThreshold is the number of consecutive empty polls every worker
	// must report before a level is considered drained.
	IdleThreshold int
}

// Validate checks the run parameters the engine depends on.
func (c Config) Validate() error {
	if c.StartURL == "" {
		return errors.New("crawler: start url is required")
	}
	if c.MaxDepth <= 0 {
		return fmt.Errorf("crawler: depth must be positive, got %d", c.MaxDepth)
	}
	return nil
}

// Engine drives the breadth-first crawl one depth level at a time.
type Engine struct {
	cfg      Config
	fetcher  Fetcher
	pool     TaskPool
	writer   RecordWriter
	clock    Clock
	logger   *zap.Logger
	frontier *Frontier
	matcher  *KeywordMatcher
	stats    Stats
	started  atomic.Bool
	running  atomic.Bool

	// workers is the pool size when Run started; reported once the pool
	// has been closed.
	workers    atomic.Int64
	poolClosed atomic.Bool
}

// New constructs an Engine. The engine owns pool and writer once Run starts
// and closes both before returning.
func New(
	cfg Config,
	fetcher Fetcher,
	pool TaskPool,
	writer RecordWriter,
	clock Clock,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || pool == nil || writer == nil {
		return nil, errors.New("crawler: fetcher, pool and writer are required")
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = defaultIdleThreshold
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	matcher := NewKeywordMatcher(cfg.Keywords)
	cfg.Keywords = matcher.Query()
	return &Engine{
		cfg:      cfg,
		fetcher:  fetcher,
		pool:     pool,
		writer:   writer,
		clock:    clock,
		logger:   logger,
		frontier: NewFrontier(),
		matcher:  matcher,
	}, nil
}

// Stats exposes the live counters.
func (e *Engine) Stats() *Stats { return &e.stats }

// Frontier exposes the visited set and level buffers.
func (e *Engine) Frontier() *Frontier { return e.frontier }

// Snapshot implements progress.Source.
func (e *Engine) Snapshot() progress.Snapshot {
	return progress.Snapshot{
		StartURL:  e.cfg.StartURL,
		Depth:     e.stats.Depth(),
		MaxDepth:  e.cfg.MaxDepth,
		Workers:   e.workerCount(),
		Keywords:  e.cfg.Keywords,
		Matched:   e.stats.Matched(),
		Processed: e.stats.Processed(),
		Elapsed:   e.stats.Elapsed(e.clock.Now()),
		Running:   e.running.Load(),
	}
}

// Run crawls from the start URL down to MaxDepth. It returns after the last
// level is drained, the writer is flushed and the pool is stopped. Per-page
// failures never abort the run; storage failures, cancellation and panics in
// the level loop do.
func (e *Engine) Run(ctx context.Context) (err error) {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("crawler: engine already started")
	}
	e.workers.Store(int64(e.pool.Size()))
	e.stats.start(e.clock.Now())
	e.running.Store(true)
	e.frontier.Seed(e.cfg.StartURL)
	e.logger.Info("crawl started",
		zap.String("start_url", e.cfg.StartURL),
		zap.Int("workers", e.pool.Size()),
		zap.Int("depth", e.cfg.MaxDepth),
		zap.String("keys", e.cfg.Keywords),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl loop panicked: %v", r)
		}
		if err != nil {
			e.abort(ctx)
		}
		e.stats.stop(e.clock.Now())
		e.running.Store(false)
		e.logSummary(err)
	}()

	for d := 1; d <= e.cfg.MaxDepth; d++ {
		if err := e.runLevel(ctx, d); err != nil {
			return err
		}
	}

	if err := e.pool.WaitIdle(ctx, e.cfg.IdleThreshold); err != nil {
		return fmt.Errorf("wait for final level: %w", err)
	}
	if _, err := e.writer.Flush(ctx); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	e.closePool()
	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

func (e *Engine) runLevel(ctx context.Context, depth int) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("crawl canceled at depth %d: %w", depth, err)
	}
	final := depth == e.cfg.MaxDepth
	urls := e.frontier.DrainCurrent()
	for _, u := range urls {
		task := CrawlTask{URL: u, Depth: depth, IsFinalLevel: final}
		if err := e.pool.AddTask(func(taskCtx context.Context) error {
			return e.process(taskCtx, task)
		}); err != nil {
			return fmt.Errorf("dispatch %s: %w", u, err)
		}
		e.stats.dispatched.Add(1)
	}
	e.logger.Debug("level dispatched", zap.Int("depth", depth), zap.Int("tasks", len(urls)))

	if !final {
		if err := e.pool.WaitIdle(ctx, e.cfg.IdleThreshold); err != nil {
			return fmt.Errorf("wait for level %d: %w", depth, err)
		}
		next := e.frontier.Advance()
		e.stats.depth.Add(1)
		e.logger.Debug("level advanced", zap.Int("depth", depth+1), zap.Int("urls", next))
	}

	n, err := e.writer.Flush(ctx)
	if err != nil {
		return fmt.Errorf("flush after level %d: %w", depth, err)
	}
	if n > 0 {
		e.logger.Debug("records flushed", zap.Int("depth", depth), zap.Int("records", n))
	}
	return nil
}

// process handles one URL. Errors are logged here and never returned, so
// every task counts as processed exactly once.
func (e *Engine) process(ctx context.Context, task CrawlTask) error {
	defer e.stats.processed.Add(1)

	res, err := e.fetcher.Fetch(ctx, task.URL)
	if err != nil {
		e.logger.Debug("page skipped", zap.String("url", task.URL), zap.Error(err))
		return nil
	}
	doc, err := ParseDocument(res.Body)
	if err != nil {
		e.logger.Warn("parse failed", zap.String("url", task.URL), zap.Error(err))
		return nil
	}

	if !task.IsFinalLevel {
		base, err := url.Parse(task.URL)
		if err != nil {
			e.logger.Warn("invalid page url", zap.String("url", task.URL), zap.Error(err))
		} else {
			admitted := e.frontier.Admit(ExtractLinks(base, doc))
			metrics.ObserveLinksAdmitted(admitted)
		}
	}

	if !e.matcher.Match(doc) {
		return nil
	}
	e.stats.matched.Add(1)
	rec := PageRecord{URL: task.URL, Keys: e.cfg.Keywords, HTML: string(res.Body)}
	if err := e.writer.Enqueue(rec); err != nil {
		e.logger.Error("enqueue page record failed", zap.String("url", task.URL), zap.Error(err))
	}
	return nil
}

// abort runs best-effort cleanup after a fatal error.
func (e *Engine) abort(ctx context.Context) {
	e.closePool()
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if n, err := e.writer.Flush(cleanupCtx); err != nil {
		e.logger.Error("final flush after abort failed", zap.Int("flushed", n), zap.Error(err))
	}
	if err := e.writer.Close(); err != nil {
		e.logger.Error("close writer after abort failed", zap.Error(err))
	}
}

func (e *Engine) logSummary(err error) {
	days, hours, minutes, seconds := progress.Breakdown(e.stats.Elapsed(e.clock.Now()))
	fields := []zap.Field{
		zap.String("start_url", e.cfg.StartURL),
		zap.Int64("processed", e.stats.Processed()),
		zap.Int64("matched", e.stats.Matched()),
		zap.String("keys", e.cfg.Keywords),
		zap.Int("depth", e.stats.Depth()),
		zap.Int("elapsed_days", days),
		zap.Int("elapsed_hours", hours),
		zap.Int("elapsed_minutes", minutes),
		zap.Int("elapsed_seconds", seconds),
	}
	if err != nil {
		e.logger.Error("crawl aborted", append(fields, zap.Error(err))...)
		return
	}
	e.logger.Info("crawl stopped", fields...)
}

func (e *Engine) workerCount() int {
	if e.poolClosed.Load() {
		return int(e.workers.Load())
	}
	return e.pool.Size()
}

func (e *Engine) closePool() {
	e.poolClosed.Store(true)
	e.pool.Close()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
