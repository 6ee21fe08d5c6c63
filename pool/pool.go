// Package pool provides the shared worker pool that activity executions run
// on.
//
// A Pool bounds the number of concurrently running tasks. Submission is
// asynchronous and never blocks the caller: when all slots are busy the task
// is queued and picked up by the next worker that frees up.
//
// The process-wide pool returned by Default is sized to
// max(4, runtime.NumCPU()). Activities may submit further activities to the
// same pool; deeply nested activities that block waiting on their children
// can starve a bounded pool, so callers are responsible for keeping workflow
// nesting depth small relative to the pool size, or for running nested
// work on the submitting goroutine (see activity.Control.StartBlocking).
package pool

import (
	"log/slog"
	"runtime"
	"sync"

	"github.com/gammazero/deque"
)

// minWorkers is the lower bound on the default pool size.
const minWorkers = 4

// Pool is a bounded set of task execution slots with an unbounded FIFO of
// pending tasks.
type Pool struct {
	limit  int
	logger *slog.Logger

	mu      sync.Mutex
	running int
	pending deque.Deque[func()]
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		p.logger = logger.With("component", "pool")
	}
}

// New creates a pool with the given concurrency limit. A limit below one
// falls back to the default size.
func New(limit int, opts ...Option) *Pool {
	if limit < 1 {
		limit = DefaultSize()
	}

	p := &Pool{
		limit:  limit,
		logger: slog.Default().With("component", "pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultSize returns the size used for the process-wide pool.
func DefaultSize() int {
	if n := runtime.NumCPU(); n > minWorkers {
		return n
	}
	return minWorkers
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// Default returns the process-wide pool, creating it on first use.
func Default() *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = New(DefaultSize())
	})
	return defaultPool
}

// Limit returns the pool's concurrency limit.
func (p *Pool) Limit() int {
	return p.limit
}

// Submit schedules a task for execution and returns immediately. If a slot is
// free the task starts on a fresh worker goroutine; otherwise it waits in the
// pending queue until a worker frees up.
func (p *Pool) Submit(task func()) {
	p.mu.Lock()
	if p.running < p.limit {
		p.running++
		p.mu.Unlock()
		go p.work(task)
		return
	}
	p.pending.PushBack(task)
	p.mu.Unlock()
}

// InFlight returns the number of running plus pending tasks.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running + p.pending.Len()
}

// work runs the given task, then drains pending tasks until the queue is
// empty. The slot is released even when a task panics.
func (p *Pool) work(task func()) {
	for {
		p.run(task)

		p.mu.Lock()
		if p.pending.Len() == 0 {
			p.running--
			p.mu.Unlock()
			return
		}
		task = p.pending.PopFront()
		p.mu.Unlock()
	}
}

// run executes a single task, recovering panics so one bad task cannot take
// down unrelated work sharing the pool. Layers above record their own
// terminal status before a panic would reach here.
func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}
