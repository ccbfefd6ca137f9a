// Package worker runs crawl tasks on a resizable pool of goroutines and
// reports when the pool has drained.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/PeakJoy/gzxspider/internal/metrics"
	"github.com/PeakJoy/gzxspider/internal/queue/memory"
)

var (
	// ErrPoolClosed is returned when work is submitted after Close.
	ErrPoolClosed = errors.New("worker pool closed")
	// ErrNoWorkers is returned by WaitIdle when tasks are queued but every
	// worker has been stopped.
	ErrNoWorkers = errors.New("worker pool has pending tasks but no workers")
)

const (
	defaultWorkers     = 10
	defaultPollTimeout = 500 * time.Millisecond
	defaultIdleCap     = 10
)

// Task is one unit of work. Failures are logged and never stop the worker.
type Task func(ctx context.Context) error

// Config controls pool sizing and idleness detection.
type Config struct {
	Workers     int           `mapstructure:"workers"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	IdleCap     int           `mapstructure:"idle_cap"`
}

type workerState struct {
	id        int
	running   atomic.Bool
	idlePolls atomic.Int64
	cancel    context.CancelFunc
}

// Pool executes tasks from one unbounded queue.
type Pool struct {
	cfg     Config
	logger  *zap.Logger
	queue   *memory.Queue[Task]
	baseCtx context.Context
	taskCtx context.Context

	mu      sync.Mutex
	workers map[int]*workerState
	nextID  int
	wg      sync.WaitGroup

	idleMu  sync.Mutex
	pending int64
	drained chan struct{}

	closed atomic.Bool
}

// New starts a pool with cfg.Workers goroutines. Cancelling ctx makes every
// worker exit after its current task; tasks themselves see a context that
// is never cancelled.
func New(ctx context.Context, cfg Config, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.IdleCap <= 0 {
		cfg.IdleCap = defaultIdleCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	drained := make(chan struct{})
	close(drained)
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		queue:   memory.NewQueue[Task](),
		baseCtx: ctx,
		taskCtx: context.WithoutCancel(ctx),
		workers: make(map[int]*workerState),
		drained: drained,
	}
	p.AddWorkers(cfg.Workers)
	return p
}

// AddTask queues a task. It never blocks on pool capacity.
func (p *Pool) AddTask(task Task) error {
	if task == nil {
		return errors.New("add task: nil task")
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}
	p.begin()
	if err := p.queue.Enqueue(task); err != nil {
		p.finish()
		return ErrPoolClosed
	}
	return nil
}

// AddWorkers grows the pool by n goroutines.
func (p *Pool) AddWorkers(n int) {
	if p.closed.Load() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(p.baseCtx)
		p.nextID++
		ws := &workerState{id: p.nextID, cancel: cancel}
		ws.running.Store(true)
		p.workers[ws.id] = ws
		p.wg.Add(1)
		go p.run(wctx, ws)
	}
}

// StopWorkers asks up to n workers to exit after their current task and
// returns how many were signalled. n < 1 stops nothing.
func (p *Pool) StopWorkers(n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	stopped := 0
	for id, ws := range p.workers {
		if stopped == n {
			break
		}
		ws.cancel()
		delete(p.workers, id)
		stopped++
	}
	return stopped
}

// Size reports the number of live workers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Pending reports tasks submitted but not yet finished.
func (p *Pool) Pending() int {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	return int(p.pending)
}

// IsAllIdle reports whether every worker has seen at least threshold
// consecutive empty polls. A pool with no workers is idle.
func (p *Pool) IsAllIdle(threshold int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ws := range p.workers {
		if ws.running.Load() && ws.idlePolls.Load() < int64(threshold) {
			return false
		}
	}
	return true
}

// WaitIdle blocks until no task is pending and every worker has confirmed
// idleness for threshold polls. Detection latency is roughly
// PollTimeout*threshold after the last task finishes.
func (p *Pool) WaitIdle(ctx context.Context, threshold int) error {
	ticker := time.NewTicker(p.cfg.PollTimeout)
	defer ticker.Stop()
	for {
		p.idleMu.Lock()
		pending, ch := p.pending, p.drained
		p.idleMu.Unlock()

		var drained <-chan struct{}
		switch {
		case pending == 0 && p.IsAllIdle(threshold):
			return nil
		case pending > 0 && p.Size() == 0:
			return ErrNoWorkers
		case pending > 0:
			drained = ch
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for idle pool: %w", ctx.Err())
		case <-drained:
		case <-ticker.C:
		}
	}
}

// Close stops every worker, waits for in-flight tasks and discards queued
// ones. It is safe to call more than once.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		p.wg.Wait()
		return
	}
	p.queue.Close()
	p.mu.Lock()
	for id, ws := range p.workers {
		ws.cancel()
		delete(p.workers, id)
	}
	p.mu.Unlock()
	p.wg.Wait()

	dropped := p.queue.Drain()
	for range dropped {
		p.finish()
	}
	if len(dropped) > 0 {
		p.logger.Warn("discarded queued tasks on close", zap.Int("count", len(dropped)))
	}
}

func (p *Pool) run(ctx context.Context, ws *workerState) {
	defer p.wg.Done()
	defer ws.running.Store(false)
	defer p.forget(ws)

	for {
		if ctx.Err() != nil {
			return
		}
		pollCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
		task, err := p.queue.Dequeue(pollCtx)
		cancel()
		if err != nil {
			if errors.Is(err, memory.ErrClosed) || ctx.Err() != nil {
				return
			}
			if ws.idlePolls.Load() < int64(p.cfg.IdleCap) {
				ws.idlePolls.Add(1)
			}
			continue
		}
		if ctx.Err() != nil {
			// Stopped while dequeuing; hand the task to a live worker.
			if err := p.queue.PushFront(task); err != nil {
				p.finish()
			}
			return
		}
		ws.idlePolls.Store(0)
		p.execute(ws.id, task)
	}
}

func (p *Pool) execute(id int, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer p.finish()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked",
				zap.Int("worker", id),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	if err := task(p.taskCtx); err != nil {
		p.logger.Warn("task failed", zap.Int("worker", id), zap.Error(err))
	}
}

// forget drops a worker that exited on its own (context cancelled).
func (p *Pool) forget(ws *workerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.workers[ws.id]; ok && cur == ws {
		delete(p.workers, ws.id)
	}
}

func (p *Pool) begin() {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	if p.pending == 0 {
		p.drained = make(chan struct{})
	}
	p.pending++
}

func (p *Pool) finish() {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	if p.pending == 0 {
		return
	}
	p.pending--
	if p.pending == 0 {
		close(p.drained)
	}
}
