// Package app wires the configured services into one crawl run: logger,
// page store, writer, worker pool, fetcher, engine, progress monitor and the
// optional status server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/PeakJoy/gzxspider/internal/api"
	"github.com/PeakJoy/gzxspider/internal/clock/system"
	"github.com/PeakJoy/gzxspider/internal/config"
	"github.com/PeakJoy/gzxspider/internal/crawler"
	"github.com/PeakJoy/gzxspider/internal/fetcher"
	"github.com/PeakJoy/gzxspider/internal/id/uuid"
	"github.com/PeakJoy/gzxspider/internal/logging"
	"github.com/PeakJoy/gzxspider/internal/progress"
	"github.com/PeakJoy/gzxspider/internal/progress/sinks"
	"github.com/PeakJoy/gzxspider/internal/storage"
	"github.com/PeakJoy/gzxspider/internal/worker"
	"github.com/PeakJoy/gzxspider/internal/writer"
)

const monitorStopTimeout = 10 * time.Second

// Options overrides process-level collaborators, mainly for tests.
type Options struct {
	// Logger replaces the logger built from cfg.Logging.
	Logger *zap.Logger
	// Out receives the console status box. Defaults to stdout.
	Out io.Writer
	// Registerer receives the progress gauges. Defaults to the global
	// Prometheus registerer.
	Registerer prometheus.Registerer
}

// App holds the services for a single crawl run.
type App struct {
	cfg     config.Config
	runID   string
	logger  *zap.Logger
	writer  *writer.Writer
	pool    *worker.Pool
	engine  *crawler.Engine
	monitor *progress.Monitor
	server  *api.Server
}

// New builds every service from cfg, which must already be validated.
// Services that hold resources are released if a later step fails.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger, err = logging.New(logging.Options{
			Development: cfg.Logging.Development,
			File:        cfg.Logging.File,
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	logger = logger.With(zap.String("run_id", runID))

	store, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
		DSN:    cfg.Storage.DSN,
		Table:  cfg.Storage.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.Info("page store ready", zap.String("driver", cfg.Storage.Driver))

	w := writer.New(store, logger.Named("writer"))
	pool := worker.New(ctx, worker.Config{
		Workers:     cfg.Crawler.Workers,
		PollTimeout: cfg.Pool.PollTimeout,
		IdleCap:     cfg.Pool.IdleCap,
	}, logger.Named("pool"))

	f := fetcher.New(fetcher.Config{
		UserAgent:    cfg.Crawler.UserAgent,
		Timeout:      cfg.Crawler.RequestTimeout,
		MaxBodyBytes: cfg.Crawler.MaxBodyBytes,
	}, logger.Named("fetcher"))

	engine, err := crawler.New(crawler.Config{
		StartURL:      cfg.Crawler.StartURL,
		MaxDepth:      cfg.Crawler.Depth,
		Keywords:      cfg.Crawler.Keywords,
		IdleThreshold: cfg.Pool.IdleThreshold,
	}, f, pool, w, system.New(), logger.Named("crawler"))
	if err != nil {
		pool.Close()
		return nil, errors.Join(fmt.Errorf("init crawler: %w", err), w.Close())
	}

	a := &App{
		cfg:    cfg,
		runID:  runID,
		logger: logger,
		writer: w,
		pool:   pool,
		engine: engine,
	}

	if cfg.Monitor.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		promSink, err := sinks.NewPrometheusSink(reg)
		if err != nil {
			pool.Close()
			return nil, errors.Join(fmt.Errorf("init progress gauges: %w", err), w.Close())
		}
		a.monitor = progress.NewMonitor(progress.Config{
			Interval: cfg.Monitor.Interval,
			Logger:   logger.Named("progress"),
		}, engine, sinks.NewTextSink(opts.Out), sinks.NewLogSink(logger.Named("progress")), promSink)
	}
	if cfg.Server.Addr != "" {
		a.server = api.NewServer(engine, logger.Named("api"))
	}
	return a, nil
}

// RunID identifies this run in every log line.
func (a *App) RunID() string { return a.runID }

// Engine exposes the crawl engine.
func (a *App) Engine() *crawler.Engine { return a.engine }

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Run executes the crawl. The status server and progress monitor live for
// the duration of the crawl and stop once it returns. The returned error is
// the crawl's own failure, or the status server's if it could not start.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if a.server != nil {
		g.Go(func() error {
			return a.server.ListenAndServe(gctx, a.cfg.Server.Addr)
		})
	}
	if a.monitor != nil {
		g.Go(func() error {
			a.monitor.Run(gctx)
			return nil
		})
	}
	if a.cfg.Writer.FlushInterval > 0 {
		a.writer.Start(gctx, a.cfg.Writer.FlushInterval)
	}

	g.Go(func() error {
		defer cancel()
		err := a.engine.Run(gctx)
		if a.monitor != nil {
			stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), monitorStopTimeout)
			if serr := a.monitor.Stop(stopCtx); serr != nil {
				a.logger.Warn("progress monitor did not stop", zap.Error(serr))
			}
			stop()
		}
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		a.logger.Error("run failed", zap.Error(err))
	}
	return err
}

// Close releases anything Run did not. It is safe to call after Run and
// more than once; after a failed Run it reports the same writer error.
func (a *App) Close() error {
	a.pool.Close()
	err := a.writer.Close()
	_ = a.logger.Sync()
	return err
}
